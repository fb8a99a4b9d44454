// Package domain содержит доменные модели redix-core.
//
// Основные сущности:
//   - Intent / Plan / Task — запрос пользователя, скомпилированный из него
//     DAG типизированных шагов и отдельный шаг.
//   - Job — долговечная запись о выполнении плана в очереди.
//   - Event — запись журнала прогресса с монотонным sequence per job.
//
// Пакет не зависит от инфраструктуры — только данные и переходы статусов.
package domain
