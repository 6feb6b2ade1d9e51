// Command keystat-devices lists input devices the collector would read
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"text/tabwriter"

	"keystat/internal/adapters/evdev"
	"keystat/internal/services/keystat/service"
)

func main() {
	var (
		fJSON    = flag.Bool("json", false, "print devices as a JSON array")
		fPattern = flag.String("pattern", service.DefaultPattern, "device node name pattern")
		fLetters = flag.Bool("letters", false, "skip key devices without letter keys (power buttons, media keys)")
	)
	flag.Parse()

	re, err := regexp.Compile(*fPattern)
	if err != nil {
		fmt.Fprintf(os.Stderr, "keystat-devices: bad -pattern: %v\n", err)
		os.Exit(2)
	}

	all, err := evdev.ListKeyboards()
	if err != nil {
		fmt.Fprintf(os.Stderr, "keystat-devices: %v\n", err)
		os.Exit(1)
	}
	devs := make([]evdev.Info, 0, len(all))
	for _, d := range all {
		if !re.MatchString(filepath.Base(d.Path)) {
			continue
		}
		if *fLetters && !d.Letters {
			continue
		}
		devs = append(devs, d)
	}

	if *fJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(devs); err != nil {
			os.Exit(1)
		}
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PATH\tNAME\tLETTERS")
	for _, d := range devs {
		fmt.Fprintf(w, "%s\t%s\t%t\n", d.Path, d.Name, d.Letters)
	}
	_ = w.Flush()
}
