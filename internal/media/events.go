// Package media wraps the external download and trim tools (yt-dlp, ffmpeg)
// behind narrow interfaces the stage executors call.
package media

// Events is the callback surface for long-running downloads. Any field may be
// nil; nil callbacks are simply not invoked.
type Events struct {
	// OnProgress receives download progress as a percentage [0,100].
	OnProgress func(percent float64)

	// OnFinished receives the final audio file path.
	OnFinished func(path string)

	// OnError receives a failure that ends the download.
	OnError func(err error)
}

func (e Events) progress(percent float64) {
	if e.OnProgress != nil {
		e.OnProgress(percent)
	}
}

func (e Events) finished(path string) {
	if e.OnFinished != nil {
		e.OnFinished(path)
	}
}

func (e Events) failed(err error) {
	if e.OnError != nil {
		e.OnError(err)
	}
}
