package config

import (
	"github.com/knadh/koanf/providers/confmap"
)

func DefaultConfig() map[string]interface{} {
	return map[string]interface{}{
		"db_path":  "~/.habit-alarm/habit.db",
		"user_id":  "local",
		"timezone": "", // empty means the system zone
		"log": map[string]interface{}{
			"level": "info",
		},
		"dispatcher": map[string]interface{}{
			"enabled":  true,
			"interval": 30, // seconds
			"retries":  2,
		},
		"metrics": map[string]interface{}{
			"addr": "", // e.g. 127.0.0.1:9464; empty disables the endpoint
		},
		"notify": map[string]interface{}{
			"provider": ProviderLog,
			"telegram": map[string]interface{}{
				"bot_token": "",
				"chat_id":   "",
				"base_url":  "",
			},
		},
		"graph": map[string]interface{}{
			"weeks": 12,
		},
	}
}

func NewDefaultProvider() *confmap.Confmap {
	return confmap.Provider(DefaultConfig(), ".")
}

func GetDefaultConfigPath() string {
	return "~/.habit-alarm/config.yaml"
}
