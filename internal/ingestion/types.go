// Package ingestion defines the event schema movie rows travel in between the
// publisher and the index consumer.
package ingestion

import (
	"strconv"
	"time"
)

// RowEvent is the Kafka payload for one raw movie row. Row is the row's
// offset within the document and is what the title index records.
type RowEvent struct {
	DocID      uint64    `json:"doc_id"`
	Row        int       `json:"row"`
	Line       string    `json:"line"`
	IngestedAt time.Time `json:"ingested_at"`
}

// Key returns the partition key: all rows of a document share one partition
// so their offsets arrive in order.
func (e RowEvent) Key() string {
	return strconv.FormatUint(e.DocID, 10)
}
