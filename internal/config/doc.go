// Package config загружает конфигурацию redix-core.
//
// Источники в порядке приоритета: переменные окружения с префиксом
// REDIX_ (REDIX_DATABASE_URL, REDIX_SERVER_PORT, ...), config.yaml
// в рабочей директории или /etc/redix, значения по умолчанию.
package config
