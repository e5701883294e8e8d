package upload

// DefaultChunkThreshold is the file size at which transfers switch from a
// single PUT to the multipart protocol.
const DefaultChunkThreshold int64 = 100 * 1024 * 1024

// SelectMethod chooses the transfer protocol for a file of the given size.
// Files at or above the threshold use the multipart protocol.
func SelectMethod(sizeBytes, threshold int64) Method {
	if threshold <= 0 {
		threshold = DefaultChunkThreshold
	}
	if sizeBytes >= threshold {
		return MethodChunked
	}
	return MethodSingle
}
