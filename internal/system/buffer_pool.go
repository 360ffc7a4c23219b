package system

import (
	"image"
	"sync"

	"golang.org/x/image/draw"
)

// CanvasPool reuses *image.RGBA canvases between compositions. Frames of one
// family share a size, so a batch usually touches a single pool entry.
type CanvasPool struct {
	pools map[image.Rectangle]*sync.Pool
	mu    sync.RWMutex
}

// NewCanvasPool creates an empty pool.
func NewCanvasPool() *CanvasPool {
	return &CanvasPool{pools: make(map[image.Rectangle]*sync.Pool)}
}

var globalPool = NewCanvasPool()

// GetCanvas returns a fully transparent canvas with bounds rect.
func GetCanvas(rect image.Rectangle) *image.RGBA {
	return globalPool.Get(rect)
}

// PutCanvas hands a canvas back once its pixels are no longer referenced.
func PutCanvas(img *image.RGBA) {
	globalPool.Put(img)
}

func (p *CanvasPool) Get(rect image.Rectangle) *image.RGBA {
	p.mu.RLock()
	pool, exists := p.pools[rect]
	p.mu.RUnlock()

	if !exists {
		p.mu.Lock()
		// Double check
		pool, exists = p.pools[rect]
		if !exists {
			pool = &sync.Pool{
				New: func() interface{} {
					return image.NewRGBA(rect)
				},
			}
			p.pools[rect] = pool
		}
		p.mu.Unlock()
	}

	canvas := pool.Get().(*image.RGBA)
	draw.Draw(canvas, canvas.Rect, image.Transparent, image.Point{}, draw.Src)
	return canvas
}

func (p *CanvasPool) Put(img *image.RGBA) {
	if img == nil {
		return
	}
	p.mu.RLock()
	pool, exists := p.pools[img.Rect]
	p.mu.RUnlock()

	if exists {
		pool.Put(img)
	}
}
