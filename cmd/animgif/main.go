package main

import (
	"bytes"
	"fmt"
	"image/png"
	"io"
	"io/ioutil"
	"log"
	"os"
	"path/filepath"
	"strconv"

	"github.com/bodgit/animgif"
	"github.com/bodgit/animgif/gif"
	"github.com/fatih/color"
	"github.com/nfnt/resize"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
)

const defaultDB = "animgif.db"

var interpolations = map[string]resize.InterpolationFunction{
	"nearest":  resize.NearestNeighbor,
	"bilinear": resize.Bilinear,
	"bicubic":  resize.Bicubic,
	"mitchell": resize.MitchellNetravali,
	"lanczos2": resize.Lanczos2,
	"lanczos3": resize.Lanczos3,
}

func init() {
	cli.VersionFlag = &cli.BoolFlag{
		Name:    "version",
		Aliases: []string{"V"},
		Usage:   "print the version",
	}
}

func newLogger(c *cli.Context) *log.Logger {
	logger := log.New(ioutil.Discard, "", 0)
	if c.Bool("verbose") {
		logger.SetOutput(os.Stderr)
	}
	return logger
}

func openDB(c *cli.Context) (*animgif.AnimDB, error) {
	return animgif.NewAnimDB(c.String("db"))
}

func parseRGB(s string) (gif.RGB, error) {
	if len(s) == 7 && s[0] == '#' {
		s = s[1:]
	}
	if len(s) != 6 {
		return gif.RGB{}, fmt.Errorf("color %q is not RRGGBB", s)
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return gif.RGB{}, errors.Wrapf(err, "color %q", s)
	}
	return gif.RGB{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v)}, nil
}

func loopCount(v uint) (uint16, error) {
	if v > 0xffff {
		return 0, fmt.Errorf("loop count %d does not fit 16 bits", v)
	}
	return uint16(v), nil
}

func expandFiles(args []string) ([]string, error) {
	var files []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			files = append(files, arg)
			continue
		}
		found, err := animgif.FindImages(arg)
		if err != nil {
			return nil, err
		}
		files = append(files, found...)
	}
	return files, nil
}

func readGIF(file string) (*gif.GIF, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return gif.Decode(f)
}

func writeFile(file string, w io.WriterTo) error {
	f, err := os.Create(file)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := w.WriteTo(f); err != nil {
		return err
	}
	return f.Close()
}

func encode(c *cli.Context) error {
	if c.NArg() < 1 {
		cli.ShowCommandHelpAndExit(c, c.Command.FullName(), 1)
	}

	bg, err := parseRGB(c.String("background"))
	if err != nil {
		return cli.NewExitError(err, 1)
	}

	interp, ok := interpolations[c.String("interpolation")]
	if !ok {
		return cli.NewExitError(fmt.Sprintf("unknown interpolation %q", c.String("interpolation")), 1)
	}

	loop, err := loopCount(c.Uint("loop"))
	if err != nil {
		return cli.NewExitError(err, 1)
	}

	files, err := expandFiles(c.Args().Slice())
	if err != nil {
		return cli.NewExitError(err, 1)
	}

	var db *animgif.AnimDB
	if c.String("name") != "" {
		if db, err = openDB(c); err != nil {
			return cli.NewExitError(err, 1)
		}
		defer db.Close()
	}

	conv := animgif.New(db, newLogger(c))
	conv.Workers = c.Int("workers")

	g, err := conv.EncodeFiles(files, animgif.Options{
		Width:         c.Int("width"),
		Height:        c.Int("height"),
		Background:    bg,
		Delay:         c.Int("delay"),
		LoopCount:     loop,
		Interpolation: interp,
	})
	if err != nil {
		return cli.NewExitError(err, 1)
	}

	if db != nil {
		if err := conv.Store(c.String("name"), g); err != nil {
			return cli.NewExitError(err, 1)
		}
	}

	if out := c.String("output"); out != "" || db == nil {
		if out == "" {
			out = "out.gif"
		}
		if err := writeFile(out, g); err != nil {
			return cli.NewExitError(err, 1)
		}
	}

	return nil
}

func decode(c *cli.Context) error {
	if c.NArg() < 1 {
		cli.ShowCommandHelpAndExit(c, c.Command.FullName(), 1)
	}

	logger := newLogger(c)

	g, err := readGIF(c.Args().First())
	if err != nil {
		return cli.NewExitError(err, 1)
	}

	dir := c.String("directory")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return cli.NewExitError(err, 1)
	}

	for i, f := range g.Frames {
		b := new(bytes.Buffer)
		if err := png.Encode(b, animgif.FrameImage(f)); err != nil {
			return cli.NewExitError(err, 1)
		}
		file := filepath.Join(dir, fmt.Sprintf("frame%04d.png", i))
		if err := writeFile(file, b); err != nil {
			return cli.NewExitError(err, 1)
		}
		logger.Printf("Wrote \"%s\", delay %d\n", file, f.Delay)
	}

	return nil
}

func info(c *cli.Context) error {
	if c.NArg() < 1 {
		cli.ShowCommandHelpAndExit(c, c.Command.FullName(), 1)
	}

	g, err := readGIF(c.Args().First())
	if err != nil {
		return cli.NewExitError(err, 1)
	}

	key := color.New(color.FgCyan).SprintFunc()
	value := color.New(color.Bold).SprintFunc()

	w := c.App.Writer
	fmt.Fprintf(w, "%s %s\n", key("Version:"), value(g.Version))
	fmt.Fprintf(w, "%s %s\n", key("Screen:"), value(fmt.Sprintf("%dx%d", g.Width, g.Height)))
	fmt.Fprintf(w, "%s %s\n", key("Colors:"), value(len(g.Palette)))
	fmt.Fprintf(w, "%s %s\n", key("Background:"), value(fmt.Sprintf("#%02x%02x%02x (index %d)", g.Background.R, g.Background.G, g.Background.B, g.BackgroundIndex)))
	loop := "forever"
	if g.LoopCount > 0 {
		loop = strconv.Itoa(int(g.LoopCount))
	}
	fmt.Fprintf(w, "%s %s\n", key("Loop:"), value(loop))
	fmt.Fprintf(w, "%s %s\n", key("Frames:"), value(len(g.Frames)))

	var total int
	for i, f := range g.Frames {
		fmt.Fprintf(w, "  %s delay %s\n", key(fmt.Sprintf("#%d", i)), value(f.Delay))
		total += f.Delay
	}
	fmt.Fprintf(w, "%s %s\n", key("Duration:"), value(fmt.Sprintf("%d.%02ds", total/100, total%100)))

	return nil
}

func storeList(c *cli.Context) error {
	db, err := openDB(c)
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	defer db.Close()

	entries, err := db.List()
	if err != nil {
		return cli.NewExitError(err, 1)
	}

	name := color.New(color.FgGreen).SprintFunc()
	for _, e := range entries {
		fmt.Fprintf(c.App.Writer, "%s\t%dx%d\t%d frames\t%d bytes\t%s\n", name(e.Name), e.Width, e.Height, e.Frames, e.Size, e.SHA1)
	}

	return nil
}

func storeGet(c *cli.Context) error {
	if c.NArg() < 1 {
		cli.ShowCommandHelpAndExit(c, c.Command.FullName(), 1)
	}

	db, err := openDB(c)
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	defer db.Close()

	b, err := db.Get(c.Args().First())
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	if b == nil {
		return cli.NewExitError(fmt.Sprintf("no animation named %q", c.Args().First()), 1)
	}

	out := c.String("output")
	if out == "" {
		out = c.Args().First() + ".gif"
	}
	if err := writeFile(out, bytes.NewBuffer(b)); err != nil {
		return cli.NewExitError(err, 1)
	}

	return nil
}

func storeImport(c *cli.Context) error {
	if c.NArg() < 2 {
		cli.ShowCommandHelpAndExit(c, c.Command.FullName(), 1)
	}

	db, err := openDB(c)
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	defer db.Close()

	f, err := os.Open(c.Args().Get(1))
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	defer f.Close()

	if err := db.Import(c.Args().First(), f); err != nil {
		return cli.NewExitError(err, 1)
	}

	return nil
}

func storeDelete(c *cli.Context) error {
	if c.NArg() < 1 {
		cli.ShowCommandHelpAndExit(c, c.Command.FullName(), 1)
	}

	db, err := openDB(c)
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	defer db.Close()

	if err := db.Delete(c.Args().First()); err != nil {
		return cli.NewExitError(err, 1)
	}

	return nil
}

func main() {
	app := cli.NewApp()

	app.Name = "animgif"
	app.Usage = "Animated GIF encoder and decoder"
	app.Version = "1.0.0"

	cwd, err := os.Getwd()
	if err != nil {
		log.Fatal(err)
	}

	app.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:    "db",
			EnvVars: []string{"ANIMGIF_DB"},
			Value:   filepath.Join(cwd, defaultDB),
			Usage:   "path to database",
		},
		&cli.IntFlag{
			Name:  "workers",
			Value: 4,
			Usage: "number of images processed at once",
		},
		&cli.BoolFlag{
			Name:    "verbose",
			Aliases: []string{"v"},
			Usage:   "increase verbosity",
		},
	}

	app.Commands = []*cli.Command{
		{
			Name:      "encode",
			Usage:     "Encode images as an animated GIF",
			ArgsUsage: "FILE|DIRECTORY...",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:    "output",
					Aliases: []string{"o"},
					Usage:   "write the GIF to `FILE`, out.gif unless stored",
				},
				&cli.StringFlag{
					Name:  "name",
					Usage: "store the GIF in the database as `NAME`",
				},
				&cli.IntFlag{
					Name:  "delay",
					Value: 10,
					Usage: "frame delay in hundredths of a second",
				},
				&cli.UintFlag{
					Name:  "loop",
					Usage: "number of repeats, 0 loops forever",
				},
				&cli.IntFlag{
					Name:  "width",
					Usage: "screen width, the first image's width if 0",
				},
				&cli.IntFlag{
					Name:  "height",
					Usage: "screen height, the first image's height if 0",
				},
				&cli.StringFlag{
					Name:  "background",
					Value: "000000",
					Usage: "background color as `RRGGBB`",
				},
				&cli.StringFlag{
					Name:  "interpolation",
					Value: "lanczos3",
					Usage: "resampling used when resizing: nearest, bilinear, bicubic, mitchell, lanczos2 or lanczos3",
				},
			},
			Action: encode,
		},
		{
			Name:      "decode",
			Usage:     "Write each frame of a GIF as a PNG",
			ArgsUsage: "FILE",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:    "directory",
					Aliases: []string{"d"},
					Value:   ".",
					Usage:   "write frames to `DIRECTORY`",
				},
			},
			Action: decode,
		},
		{
			Name:      "info",
			Usage:     "Describe the structure of a GIF",
			ArgsUsage: "FILE",
			Action:    info,
		},
		{
			Name:  "store",
			Usage: "Manage the animation database",
			Subcommands: []*cli.Command{
				{
					Name:   "list",
					Usage:  "List stored animations",
					Action: storeList,
				},
				{
					Name:      "get",
					Usage:     "Write a stored animation to a file",
					ArgsUsage: "NAME",
					Flags: []cli.Flag{
						&cli.StringFlag{
							Name:    "output",
							Aliases: []string{"o"},
							Usage:   "write the GIF to `FILE`, NAME.gif by default",
						},
					},
					Action: storeGet,
				},
				{
					Name:      "import",
					Usage:     "Store an existing GIF",
					ArgsUsage: "NAME FILE",
					Action:    storeImport,
				},
				{
					Name:      "delete",
					Usage:     "Remove a stored animation",
					ArgsUsage: "NAME",
					Action:    storeDelete,
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
