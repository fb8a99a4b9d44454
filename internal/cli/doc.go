// Package cli реализует инструмент командной строки redix-core.
//
// # Обзор
//
// CLI — клиентская утилита для взаимодействия с redix-core API.
// Работает через HTTP, не импортирует внутренние пакеты системы.
// CLI используется для управления plans, jobs и dead-letter очередью.
//
// # Ключевые компоненты
//
// ## Client
//
// HTTP-клиент для redix-core API. Инкапсулирует все HTTP-запросы,
// парсинг ответов (DataResponse, ListResponse, ErrorResponse)
// и обработку ошибок.
//
//	client := cli.NewClient("http://localhost:8080")
//	plan, err := client.GetPlan(id)
//
// ## Output
//
// Форматирование вывода. Поддерживает два режима:
//   - Таблицы (text/tabwriter) — по умолчанию
//   - JSON (json.Encoder с отступами) — с флагом --json
//
// Данные выводятся в stdout, сообщения (Success/Error) — в stderr.
// Это позволяет использовать pipe: redix job show ID --json | jq .
//
// ## Commands
//
// Cobra-команды организованы по ресурсам:
//   - plan: create, show, approve
//   - job: submit, show, cancel, pause, resume, events
//   - dlq: list, recover
//
// Каждая группа создаётся через фабричную функцию (NewPlanCmd и т.д.),
// принимающую clientFn и outputFn — замыкания для ленивого создания
// Client и Output после парсинга PersistentFlags.
package cli
