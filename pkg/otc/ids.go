package otc

import "strconv"

// EventID builds the key of every row that is not a Listing. A (transaction
// hash, log index) pair is unique across the chain, so the key is too.
func EventID(txHash string, logIndex uint) string {
	return txHash + "-" + strconv.FormatUint(uint64(logIndex), 10)
}
