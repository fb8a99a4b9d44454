// Package executor выполняет план: топологическое frontier-планирование,
// параллельный диспатч готовых task'ов, изоляция частичных сбоев.
//
// Диспатч полиморфен по реестру handler'ов, ключ — строковый тип task'а.
// Незарегистрированный тип — это упавший task, а не panic.
package executor
