package config

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/spf13/viper"
)

const DATABASE_TYPE = "OFLOW_DATABASE_TYPE"
const DATABASE_URL = "OFLOW_DATABASE_URL"
const DATABASE_SQLLITE_FILE_NAME = "OFLOW_DATABASE_SQLLITE_FILE_NAME"
const SERVER_WEB_PORT = "OFLOW_SERVER_WEB_PORT"
const LLM_BASE_URL = "OFLOW_LLM_BASE_URL"
const LLM_MODEL = "OFLOW_LLM_MODEL"
const LLM_API_KEY = "OFLOW_LLM_API_KEY"
const LLM_TIMEOUT = "OFLOW_LLM_TIMEOUT"                       //duration string, eg 60s
const UPLOAD_DIR = "OFLOW_UPLOAD_DIR"                         //where uploaded application documents are stored
const DEFAULT_CUSTOMER_EMAIL = "OFLOW_DEFAULT_CUSTOMER_EMAIL" //used when extraction found no email
const WEB_SESSION_EXPIRY_HOURS = "OFLOW_WEB_SESSION_EXPIRY_HOURS"
const LOG_LEVEL = "OFLOW_LOG_LEVEL"

// CONFIG_PATH points at an optional YAML file; keys are the setting names
// without the OFLOW_ prefix in lower case, eg database_type.
const CONFIG_PATH = "OFLOW_CONFIG_PATH"

const DATABASE_TYPE_POSTGRES = "POSTGRES"
const DATABASE_TYPE_MYSQL = "MYSQL"
const DATABASE_TYPE_SQLLITE = "SQLLITE"

const envPrefix = "OFLOW"

var defaults = map[string]string{
	DATABASE_TYPE:              DATABASE_TYPE_SQLLITE,
	DATABASE_SQLLITE_FILE_NAME: "./onboardflow.db",
	SERVER_WEB_PORT:            "8080",
	LLM_BASE_URL:               "https://api.openai.com/v1",
	LLM_MODEL:                  "gpt-4o-mini",
	LLM_TIMEOUT:                "60s",
	UPLOAD_DIR:                 "./uploads",
	DEFAULT_CUSTOMER_EMAIL:     "customer@example.com",
	WEB_SESSION_EXPIRY_HOURS:   "1",
	LOG_LEVEL:                  "info",
}

var (
	mu       sync.Mutex
	settings *viper.Viper
)

// Load (re)reads the settings: built-in defaults, then the YAML file named by
// OFLOW_CONFIG_PATH, then OFLOW_* environment variables.
func Load() error {
	v := newViper()
	var err error
	if path := os.Getenv(CONFIG_PATH); path != "" {
		v.SetConfigFile(path)
		if e := v.ReadInConfig(); e != nil {
			// env vars and defaults stay usable
			err = fmt.Errorf("error reading config file %s: %w", path, e)
		}
	}
	mu.Lock()
	settings = v
	mu.Unlock()
	return err
}

// Set overrides a setting for the life of the process, used by CLI flags.
func Set(settingKey string, value string) {
	current().Set(viperKey(settingKey), value)
}

func GetSystemSettingInteger(settingKey string) int {
	return current().GetInt(viperKey(settingKey))
}

func GetSystemSettingString(settingKey string) string {
	return current().GetString(viperKey(settingKey))
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	for key, val := range defaults {
		v.SetDefault(viperKey(key), val)
	}
	return v
}

func current() *viper.Viper {
	mu.Lock()
	v := settings
	mu.Unlock()
	if v == nil {
		_ = Load()
		mu.Lock()
		v = settings
		mu.Unlock()
	}
	return v
}

// viperKey maps OFLOW_DATABASE_TYPE to database_type; AutomaticEnv maps it back.
func viperKey(settingKey string) string {
	return strings.ToLower(strings.TrimPrefix(settingKey, envPrefix+"_"))
}
