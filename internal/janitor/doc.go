// Package janitor реализует фоновую уборку системы:
//
//   - возврат jobs с истёкшим lease обратно в очередь
//   - retention: удаление давно завершённых jobs и их event history
//   - чистка истёкших dedup-маркеров
//
// Расписание задаётся cron-выражениями (включая @every-дескрипторы).
package janitor
