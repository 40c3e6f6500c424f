package models

// RawUpload is one file as received from a client, before normalization.
// It only lives for the duration of a request.
type RawUpload struct {
	Data      []byte
	MediaType string
	Filename  string
	Size      int64
}

// Len is the effective size of the upload: the declared size, or the byte
// count when nothing was declared.
func (u RawUpload) Len() int64 {
	if n := int64(len(u.Data)); n > u.Size {
		return n
	}
	return u.Size
}
