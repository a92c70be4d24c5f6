// Command imgmeta is the command-line shell for the metadata codec.
//
//	imgmeta view <image>
//	imgmeta edit <image> --set key=value [--set ...] [--namespace exif]
//	imgmeta serve [--config limits.yaml]
package main

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"

	flag "github.com/spf13/pflag"

	"github.com/ankit-chaubey/image-metadata-service/core"
	"github.com/ankit-chaubey/image-metadata-service/core/container"
	"github.com/ankit-chaubey/image-metadata-service/core/jpg"
	"github.com/ankit-chaubey/image-metadata-service/server"
)

func main() {
	if len(os.Args) < 2 {
		usage()
	}
	cmd := os.Args[1]
	args := os.Args[2:]

	switch cmd {
	case "view":
		runView(args)
	case "edit":
		runEdit(args)
	case "serve":
		runServe(args)
	default:
		usage()
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "Usage: imgmeta view <image> [--json] [--all]")
	fmt.Fprintln(os.Stderr, "       imgmeta edit <image> --set key=value [--set ...] [--namespace ns] [--out file]")
	fmt.Fprintln(os.Stderr, "       imgmeta serve [--config file]")
	os.Exit(1)
}

func runView(args []string) {
	fs := flag.NewFlagSet("view", flag.ExitOnError)
	jsonOut := fs.Bool("json", false, "emit JSON instead of text")
	all := fs.Bool("all", false, "also dump every raw EXIF tag")
	fs.Parse(args)
	if fs.NArg() != 1 {
		usage()
	}

	buf, err := os.ReadFile(fs.Arg(0))
	if err != nil {
		log.Fatal(err)
	}
	res, err := container.New(core.DefaultLimits()).Read(buf)
	if err != nil {
		log.Fatal(err)
	}
	core.NewPrinter(*jsonOut).PrintRead(res)

	if *all {
		fmt.Println("\n── raw EXIF ──")
		if err := jpg.DumpEXIF(buf, os.Stdout); err != nil {
			log.Fatal(err)
		}
	}
}

func runEdit(args []string) {
	fs := flag.NewFlagSet("edit", flag.ExitOnError)
	sets := fs.StringArray("set", nil, "field to set, as key=value (repeatable)")
	ns := fs.String("namespace", "", "force a namespace: exif, png_text or xmp")
	out := fs.String("out", "", "output path (default: in place)")
	jsonOut := fs.Bool("json", false, "emit JSON instead of text")
	fs.Parse(args)
	if fs.NArg() != 1 || len(*sets) == 0 {
		usage()
	}

	fields := map[string]string{}
	for _, kv := range *sets {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			log.Fatalf("bad --set value %q, want key=value", kv)
		}
		fields[k] = v
	}

	path := fs.Arg(0)
	buf, err := os.ReadFile(path)
	if err != nil {
		log.Fatal(err)
	}
	res, err := container.New(core.DefaultLimits()).Write(buf, core.WriteRequest{
		Set:       fields,
		Namespace: core.Namespace(*ns),
	})
	if err != nil {
		log.Fatal(err)
	}

	dest := *out
	if dest == "" {
		dest = path
	}
	if err := os.WriteFile(dest, res.Image, 0644); err != nil {
		log.Fatal(err)
	}
	core.NewPrinter(*jsonOut).PrintWrite(res)
}

func runServe(args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	cfgPath := fs.String("config", "", "YAML config file")
	addr := fs.String("addr", "", "listen address (overrides config)")
	fs.Parse(args)

	cfg := server.DefaultConfig()
	if *cfgPath != "" {
		var err error
		if cfg, err = server.LoadConfig(*cfgPath); err != nil {
			log.Fatal(err)
		}
	}
	if *addr != "" {
		cfg.Addr = *addr
	}

	logger := log.New(os.Stderr, "imgmeta ", log.LstdFlags)
	logger.Printf("listening on %s", cfg.Addr)
	srv := server.New(cfg, logger)
	if err := http.ListenAndServe(cfg.Addr, srv.Handler()); err != nil {
		logger.Fatal(err)
	}
}
