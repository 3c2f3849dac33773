package ioutil

import (
	"io"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/schollz/progressbar/v3"
)

// Progressor is told about every chunk of a transfer. total is -1 when unknown.
type Progressor func(curr, total int64)

// BarProgressor renders a byte progress bar to w. An unknown total renders a spinner.
func BarProgressor(w io.Writer, description string) Progressor {
	var bar *progressbar.ProgressBar
	var init sync.Once
	return func(curr, total int64) {
		init.Do(func() {
			bar = progressbar.NewOptions64(total,
				progressbar.OptionSetWriter(w),
				progressbar.OptionSetDescription(description),
				progressbar.OptionShowBytes(true),
				progressbar.OptionShowCount(),
				progressbar.OptionSetWidth(30),
				progressbar.OptionThrottle(65*time.Millisecond),
				progressbar.OptionOnCompletion(func() {
					_, _ = io.WriteString(w, "\n")
				}),
			)
		})
		_ = bar.Set64(curr)
	}
}

// LogProgressor logs the progress at most once per interval, and once more on completion.
// It suits non-interactive output where a bar would garble the log.
func LogProgressor(lgr log.Logger, msg string, interval time.Duration) Progressor {
	if interval <= 0 {
		interval = time.Second
	}
	var mu sync.Mutex
	var last time.Time
	return func(curr, total int64) {
		mu.Lock()
		due := curr == total || time.Since(last) >= interval
		if due {
			last = time.Now()
		}
		mu.Unlock()
		if due {
			lgr.Info(msg, "current", curr, "total", total)
		}
	}
}

func NoopProgressor() Progressor {
	return func(curr, total int64) {}
}

// ProgressReader reports every read from R to Progressor.
type ProgressReader struct {
	R          io.Reader
	Progressor Progressor
	Total      int64

	curr int64
}

func (pr *ProgressReader) Read(p []byte) (int, error) {
	n, err := pr.R.Read(p)
	pr.curr += int64(n)
	if pr.Progressor != nil {
		pr.Progressor(pr.curr, pr.Total)
	}
	return n, err
}
