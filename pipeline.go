package animgif

import (
	"context"
	"image"
	_ "image/gif" // register decoders
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/bodgit/animgif/gif"
	"github.com/bodgit/animgif/internal/pipeline"
	"github.com/pkg/errors"
)

var imageExts = map[string]struct{}{
	".gif":  {},
	".jpeg": {},
	".jpg":  {},
	".png":  {},
}

// FindImages returns the image files under dir in lexical order.
func FindImages(dir string) ([]string, error) {
	var files []string
	if err := filepath.Walk(dir, func(file string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		// Ignore any hidden files or directories
		if file != dir && info.Name()[0] == '.' {
			if info.Mode().IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if !info.Mode().IsRegular() {
			return nil
		}

		if _, ok := imageExts[strings.ToLower(filepath.Ext(file))]; ok {
			files = append(files, file)
		}
		return nil
	}); err != nil {
		return nil, err
	}
	return files, nil
}

func loadImage(file string) (image.Image, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	m, _, err := image.Decode(f)
	if err != nil {
		return nil, errors.Wrap(err, file)
	}
	return m, nil
}

func (c *Converter) generateIndices(ctx context.Context, n int) <-chan int {
	out := make(chan int)
	go func() {
		defer close(out)
		for i := 0; i < n; i++ {
			select {
			case out <- i:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

func (c *Converter) imageWorker(ctx context.Context, cancel context.CancelFunc, in <-chan int, files []string, out []image.Image) <-chan error {
	errc := make(chan error, 1)
	go func() {
		defer close(errc)
		for i := range in {
			select {
			case <-ctx.Done():
				return
			default:
			}

			m, err := loadImage(files[i])
			if err != nil {
				errc <- err
				cancel()
				return
			}
			c.logger.Printf("Loaded \"%s\", %dx%d\n", files[i], m.Bounds().Dx(), m.Bounds().Dy())
			out[i] = m
		}
	}()
	return errc
}

// LoadImages decodes files concurrently, returning the images in the same
// order.
func (c *Converter) LoadImages(files []string) ([]image.Image, error) {
	ctx, cancelFunc := context.WithCancel(context.Background())
	defer cancelFunc()

	indices := c.generateIndices(ctx, len(files))

	out := make([]image.Image, len(files))
	var errcList []<-chan error
	for i := 0; i < c.workers(); i++ {
		errcList = append(errcList, c.imageWorker(ctx, cancelFunc, indices, files, out))
	}

	if err := pipeline.Wait(errcList...); err != nil {
		return nil, err
	}
	return out, nil
}

// EncodeFiles loads files as the frames of a new animation.
func (c *Converter) EncodeFiles(files []string, opts Options) (*gif.GIF, error) {
	images, err := c.LoadImages(files)
	if err != nil {
		return nil, err
	}
	return c.Convert(images, opts)
}

// Store renders g and saves it under name.
func (c *Converter) Store(name string, g *gif.GIF) error {
	if c.db == nil {
		return errors.New("no database")
	}
	return c.db.Put(name, g)
}
