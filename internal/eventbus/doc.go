// Package eventbus реализует append-only журнал событий прогресса jobs
// с pub/sub fan-out.
//
// Каждый job имеет собственный монотонный sequence и bounded history
// ring; доставка живым подписчикам best-effort (drop вместо ожидания),
// durability обеспечивается ring'ом и операцией History.
package eventbus
