package handlers

import "time"

const (
	// Форматы дат в query параметрах. Время без смещения читается в часовом поясе сервиса
	dateLayout      = "2006-01-02"
	localTimeLayout = "2006-01-02T15:04"

	// Ограничение тела запроса
	maxBodyBytes = 1 << 20

	readyTimeout = 2 * time.Second

	headerRequestID = "X-Request-ID"
)
