package telegram

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"image/png"
	"io"
	"math"
	"net/http"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

const (
	defaultDebounce = 1200 * time.Millisecond
	maxPixels       = 18_000_000
	maxAlbumPages   = 10
)

// album collects the pages of one media group until no new page arrives for
// the debounce interval.
type album struct {
	chatID int64

	mu     sync.Mutex
	pages  [][]byte
	timer  *time.Timer
	closed bool
}

var albums sync.Map // media group id -> *album

func (r *Router) acceptImage(ctx context.Context, msg *tgbotapi.Message, fileID string) {
	cid := msg.Chat.ID
	url, err := r.Bot.GetFileDirectURL(fileID)
	if err != nil {
		r.SendError(cid, err)
		return
	}
	fetch := r.fetch
	if fetch == nil {
		fetch = download
	}
	img, err := fetch(ctx, url)
	if err != nil {
		r.logger().Warn("photo download failed", zap.Int64("chat_id", cid), zap.Error(err))
		r.SendError(cid, err)
		return
	}

	if msg.MediaGroupID == "" {
		r.analyze(ctx, cid, img)
		return
	}
	r.addAlbumPage(context.WithoutCancel(ctx), cid, msg.MediaGroupID, img)
}

func (r *Router) addAlbumPage(ctx context.Context, chatID int64, groupID string, img []byte) {
	debounce := r.Debounce
	if debounce <= 0 {
		debounce = defaultDebounce
	}
	for {
		v, _ := albums.LoadOrStore(groupID, &album{chatID: chatID})
		a := v.(*album)

		a.mu.Lock()
		if a.closed {
			// flushed between LoadOrStore and Lock; this page starts a new album
			a.mu.Unlock()
			albums.CompareAndDelete(groupID, a)
			continue
		}
		r.appendPage(ctx, a, groupID, img, debounce)
		a.mu.Unlock()
		return
	}
}

// appendPage adds img to a and restarts the debounce timer. a.mu must be held.
func (r *Router) appendPage(ctx context.Context, a *album, groupID string, img []byte, debounce time.Duration) {
	if len(a.pages) >= maxAlbumPages {
		return
	}
	a.pages = append(a.pages, img)
	if a.timer != nil {
		a.timer.Stop()
	}
	a.timer = time.AfterFunc(debounce, func() { r.flushAlbum(ctx, groupID) })
	if len(a.pages) == 1 {
		r.send(a.chatID, "사진을 받았습니다. 여러 장이면 이어서 보내 주세요. 한 장으로 합쳐서 읽어 드립니다.")
	}
}

func (r *Router) flushAlbum(ctx context.Context, groupID string) {
	v, ok := albums.LoadAndDelete(groupID)
	if !ok {
		return
	}
	a := v.(*album)
	a.mu.Lock()
	a.closed = true
	pages := append([][]byte(nil), a.pages...)
	a.mu.Unlock()

	if len(pages) == 0 {
		return
	}
	img := pages[0]
	if len(pages) > 1 {
		var err error
		if img, err = stitch(pages); err != nil {
			r.SendError(a.chatID, fmt.Errorf("stitch album: %w", err))
			return
		}
	}
	r.analyze(ctx, a.chatID, img)
}

// stitch stacks the pages vertically on a white canvas and returns a JPEG,
// scaled down to maxPixels when needed.
func stitch(pages [][]byte) ([]byte, error) {
	decoded := make([]image.Image, 0, len(pages))
	var width, height int
	for i, b := range pages {
		img, err := decodeImage(b)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", i+1, err)
		}
		decoded = append(decoded, img)
		bounds := img.Bounds()
		width = max(width, bounds.Dx())
		height += bounds.Dy()
	}
	if width == 0 || height == 0 {
		return nil, fmt.Errorf("empty images")
	}

	canvas := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(canvas, canvas.Bounds(), &image.Uniform{C: color.White}, image.Point{}, draw.Src)
	y := 0
	for _, img := range decoded {
		b := img.Bounds()
		x := (width - b.Dx()) / 2
		draw.Draw(canvas, image.Rect(x, y, x+b.Dx(), y+b.Dy()), img, b.Min, draw.Over)
		y += b.Dy()
	}

	out := image.Image(canvas)
	if total := width * height; total > maxPixels {
		scale := math.Sqrt(float64(maxPixels) / float64(total))
		out = scaleDown(canvas, max(1, int(float64(width)*scale+0.5)), max(1, int(float64(height)*scale+0.5)))
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, out, &jpeg.Options{Quality: 90}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeImage(b []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(b))
	if err == nil {
		return img, nil
	}
	switch {
	case bytes.HasPrefix(b, []byte{0xFF, 0xD8}):
		return jpeg.Decode(bytes.NewReader(b))
	case bytes.HasPrefix(b, []byte("\x89PNG\r\n\x1a\n")):
		return png.Decode(bytes.NewReader(b))
	}
	return nil, err
}

// scaleDown is nearest-neighbour; good enough for text that is only shrunk.
func scaleDown(src image.Image, w, h int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	sb := src.Bounds()
	for y := 0; y < h; y++ {
		sy := sb.Min.Y + y*sb.Dy()/h
		for x := 0; x < w; x++ {
			dst.Set(x, y, src.At(sb.Min.X+x*sb.Dx()/w, sy))
		}
	}
	return dst
}

var httpClient = &http.Client{Timeout: 60 * time.Second}

func download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("download status %d: %s", resp.StatusCode, string(b))
	}
	return io.ReadAll(resp.Body)
}
