package experiment

import (
	"io"
	"sync"

	pb "github.com/cheggaaa/pb/v3"
)

// progress shows a bar per file being uploaded. Files are uploaded one by one.
type progress struct {
	w io.Writer

	mu      sync.Mutex
	current string
	bar     *pb.ProgressBar
}

func newProgress(w io.Writer) *progress {
	return &progress{w: w}
}

// Update is upload.ProgressFunc.
func (p *progress) Update(filename string, sent int64, total int64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.bar == nil || p.current != filename {
		p.finish()
		bar := pb.New64(total)
		bar.Set(pb.Bytes, true)
		bar.SetWriter(p.w)
		bar.Set("prefix", ellipsis(filename, 40)+":")
		bar.Start()
		p.bar = bar
		p.current = filename
	}
	if p.bar.Current() < sent {
		p.bar.SetCurrent(sent)
	}
}

func (p *progress) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.finish()
}

func (p *progress) finish() {
	if p.bar == nil {
		return
	}
	p.bar.Finish()
	p.bar = nil
	p.current = ""
}

func ellipsis(s string, length int) string {
	if len(s) <= length {
		return s
	}
	l := len(s)
	return "..." + s[l-(length-3):]
}
