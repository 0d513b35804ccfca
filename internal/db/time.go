package db

import "time"

// TimeLayout is the format used for every timestamp column. It is fixed
// width so that text ordering matches time ordering.
const TimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func nowString() string {
	return time.Now().UTC().Format(TimeLayout)
}
