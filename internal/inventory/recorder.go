package inventory

// Recorder receives counters about client operations.
type Recorder interface {
	QuantityAdjusted()
	ActivityAppendFailed()
	ItemCommitted(ok bool)
	AttachmentUploaded(ok bool)
	BlobDeleted(ok bool)
}

type nopRecorder struct{}

func (nopRecorder) QuantityAdjusted()       {}
func (nopRecorder) ActivityAppendFailed()   {}
func (nopRecorder) ItemCommitted(bool)      {}
func (nopRecorder) AttachmentUploaded(bool) {}
func (nopRecorder) BlobDeleted(bool)        {}

func recorderOrNop(r Recorder) Recorder {
	if r == nil {
		return nopRecorder{}
	}
	return r
}
