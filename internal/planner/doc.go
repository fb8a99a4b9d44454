// Package planner компилирует intent пользователя в Plan — DAG
// типизированных шагов с оценками времени/стоимости и уровнем риска.
//
// Состав:
//   - planner.go — скелеты pipeline по типу intent'а, оценки, риск
//   - validate.go — структурная проверка DAG (циклы, сироты, корни)
//   - optimize.go — отсечение мёртвых веток и пересчёт оценок
package planner
