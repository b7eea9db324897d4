// Package uploads defines upload instructions issued by the server on experiment creation.
package uploads

import "encoding/json"

type Mode string

const (
	Single    Mode = "single"
	Multipart Mode = "multipart"
)

// Part is a presigned URL for a chunk of multipart upload.
type Part struct {
	PartNumber int    `json:"part_number"`
	Url        string `json:"url"`
}

// Descriptor tells how to transfer one local file.
//
// For Single mode, Url is set. For Multipart mode, UploadSessionId and Parts are set.
type Descriptor struct {
	Filename        string `json:"filename"`
	Mode            Mode   `json:"mode"`
	Url             string `json:"url,omitempty"`
	UploadSessionId string `json:"upload_session_id,omitempty"`
	Parts           []Part `json:"parts,omitempty"`
}

// UnmarshalJSON reads a descriptor. Mode defaults to Single.
func (d *Descriptor) UnmarshalJSON(b []byte) error {
	type descriptor Descriptor
	var ret descriptor
	if err := json.Unmarshal(b, &ret); err != nil {
		return err
	}
	if ret.Mode == "" {
		ret.Mode = Single
	}
	*d = Descriptor(ret)
	return nil
}

// CompletedPart is a part uploaded, with ETag returned from the storage.
type CompletedPart struct {
	PartNumber int    `json:"part_number"`
	ETag       string `json:"etag"`
}

// CompleteRequest is the body of POST /experiments/{id}/uploads/complete.
type CompleteRequest struct {
	Filename string `json:"filename"`
	UploadId string `json:"upload_id"`
}
