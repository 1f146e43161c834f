package export

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
)

// Fingerprint derives the stable dedup key for one campaign event. Two
// events sharing (campaign, lead, timestamp, subject) collapse to the same
// fingerprint even when their bodies differ: a resend with edited text but
// identical timestamp and subject is treated as a duplicate and skipped.
// The digest identifies the event, not its content.
func Fingerprint(campaignID, leadID int64, timestamp, subject string) string {
	key := fmt.Sprintf("%d_%d_%s_%s", campaignID, leadID, timestamp, subject)
	sum := md5.Sum([]byte(key))
	return hex.EncodeToString(sum[:])
}
