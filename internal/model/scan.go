package model

import "time"

// ScanRecord is the persisted outcome of one scanned image. The full card
// number is never part of a record.
type ScanRecord struct {
	ScannedAt     time.Time
	Source        string
	MaskedNumber  string
	Last4         string
	Error         string
	Boxes         []DetectedBox
	ID            int64
	Attempts      int
	Duration      time.Duration
	Found         bool
	Unrecoverable bool
	// HasExpiry records whether an expiry date region was detected.
	HasExpiry bool
}

// NewScanRecord builds a record for source. number is only used to derive its
// masked form.
func NewScanRecord(source, number string, found bool, boxes []DetectedBox) ScanRecord {
	rec := ScanRecord{
		Source:    source,
		Found:     found,
		Boxes:     boxes,
		ScannedAt: time.Now(),
	}
	if found {
		card := Card{Number: number}
		rec.MaskedNumber = card.Masked()
		rec.Last4 = card.Last4()
	}
	return rec
}
