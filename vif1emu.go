package main

import (
	"context"
	"flag"
	"io/ioutil"
	"log"
	"os"
	"os/signal"
	"strconv"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/mogaika/vif1emu/config"
	"github.com/mogaika/vif1emu/ps2/dma"
	"github.com/mogaika/vif1emu/ps2/ee"
	"github.com/mogaika/vif1emu/ps2/gif"
	"github.com/mogaika/vif1emu/ps2/vif"
	"github.com/mogaika/vif1emu/ps2/vif1"
	"github.com/mogaika/vif1emu/ps2/vpu"
	"github.com/mogaika/vif1emu/states"
	"github.com/mogaika/vif1emu/status"
	"github.com/mogaika/vif1emu/utils"
	"github.com/mogaika/vif1emu/web"
)

type gifLogger struct {
	verbose bool
}

func (l gifLogger) GifPacket(path int, tag gif.GifTag, data []byte) {
	if l.verbose {
		log.Printf("[gif] path%d %v\n%s", path, tag, utils.DumpQuadwords(data))
	}
}

// blankGS answers local to host transfers with zeroes
type blankGS struct{}

func (blankGS) ReadImageData(dst []byte) {
	for i := range dst {
		dst[i] = 0
	}
}

func parseAddress(s string) (uint32, error) {
	v, err := strconv.ParseUint(s, 0, 32)
	if err != nil {
		return 0, errors.Wrapf(err, "Invalid address %q", s)
	}
	return uint32(v), nil
}

func loadImage(mem *ee.Memory, path string, addr uint32) error {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return errors.Wrapf(err, "Cannot read memory image")
	}
	span, err := mem.Resolve(addr, uint32(len(data)))
	if err != nil {
		return errors.Wrapf(err, "Memory image %q doesn't fit", path)
	}
	copy(span, data)
	return nil
}

func saveSnapshot(unit *vif1.Vif1, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "Cannot create snapshot")
	}
	defer f.Close()

	zw := states.NewZipWriter(f)
	if err := unit.SaveState(zw); err != nil {
		return err
	}
	if err := zw.Close(); err != nil {
		return errors.Wrapf(err, "Cannot finish snapshot")
	}
	log.Printf("Snapshot %v saved to %q", zw.Id(), path)
	return nil
}

func restoreSnapshot(unit *vif1.Vif1, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "Cannot open snapshot")
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}
	zr, err := states.NewZipReader(f, info.Size())
	if err != nil {
		return err
	}
	if err := unit.LoadState(zr); err != nil {
		return err
	}
	log.Printf("Snapshot %v restored from %q", zr.Manifest().Id, path)
	return nil
}

func main() {
	var addr, cfgPath, image, imageAddr, tadr, statePath, restorePath string
	var verbose bool
	flag.StringVar(&addr, "i", "", "Address of inspection server, empty to disable")
	flag.StringVar(&cfgPath, "config", "", "Path to yaml config")
	flag.StringVar(&image, "ram", "", "Memory image with dma chain and vif data")
	flag.StringVar(&imageAddr, "ramaddr", "0", "Load address of memory image")
	flag.StringVar(&tadr, "tag", "0", "Address of first dma tag")
	flag.StringVar(&statePath, "state", "", "Save snapshot to this zip after chain is done")
	flag.StringVar(&restorePath, "restore", "", "Restore snapshot from zip before chain is started")
	flag.BoolVar(&verbose, "verbose", false, "Dump every gif packet")
	flag.Parse()

	if image == "" {
		flag.PrintDefaults()
		return
	}

	cfg := config.Default()
	if cfgPath != "" {
		var err error
		if cfg, err = config.Load(cfgPath); err != nil {
			log.Fatal(err)
		}
	}

	loadAddr, err := parseAddress(imageAddr)
	if err != nil {
		log.Fatal(err)
	}
	tagAddr, err := parseAddress(tadr)
	if err != nil {
		log.Fatal(err)
	}

	mem, err := ee.NewMemory(cfg.RAMSize, cfg.SPRSize)
	if err != nil {
		log.Fatal(err)
	}
	if err := loadImage(mem, image, loadAddr); err != nil {
		log.Fatal(err)
	}

	arbiter := gif.NewArbiter(gifLogger{verbose: verbose})
	vu := vpu.NewVpu()
	unit := vif1.New(mem, arbiter, blankGS{}, vu, cfg.Vif1Options())
	defer unit.Close()

	// microprograms are not executed, so report them and let unit go on
	vu.OnMicroProgram(func(p vif.MicroProgram) {
		if verbose {
			log.Printf("[vpu] microprogram 0x%x top 0x%x itop 0x%x", p.Addr, p.Top, p.Itop)
		}
	})

	if restorePath != "" {
		if err := restoreSnapshot(unit, restorePath); err != nil {
			log.Fatal(err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		chain := dma.NewChain(mem, unit, tagAddr)
		chain.TTE = cfg.TagTransfer
		chain.MaxTags = cfg.MaxTags
		chain.OnTag = func(tadr uint32, tag dma.DmaTag) {
			status.Progress(0, "tag 0x%.8x %v", tadr, tag)
		}

		status.Info("Chain started from 0x%.8x", tagAddr)
		if err := chain.Run(ctx); err != nil {
			status.Error("Chain failed: %v", err)
			return errors.Wrapf(err, "DMA chain")
		}
		if err := unit.Err(); err != nil {
			status.Error("Unit fault: %v", err)
			return err
		}

		stats, err := unit.Stats()
		if err != nil {
			return err
		}
		status.Progress(1, "Chain done: %d gif packets", arbiter.Packets())
		utils.LogDump(stats)

		if statePath != "" {
			if err := saveSnapshot(unit, statePath); err != nil {
				return err
			}
		}
		if addr == "" {
			stop()
		}
		return nil
	})

	if addr != "" {
		g.Go(func() error {
			return web.StartServer(ctx, addr, web.NewServer(unit, status.Default))
		})
	}

	if err := g.Wait(); err != nil && errors.Cause(err) != context.Canceled {
		log.Fatal(err)
	}
}
