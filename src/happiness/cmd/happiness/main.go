package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	tty "github.com/mattn/go-tty"

	"camaraderie/src/bsp/simulator"
	"camaraderie/src/happiness"
	"camaraderie/src/hardware/riscv"
	"camaraderie/src/hardware/sim"
	"camaraderie/src/joy"
	"camaraderie/src/lib/tohost"
	"camaraderie/src/lib/trust"
)

var harts = flag.Int("harts", 4, "number of harts in the simulated machine")
var boot = flag.Int("boot", 0, "raw id of the boot hart")
var logLevel = flag.String("log", "info", "log level: none, error, warn, info or debug")
var interactive = flag.Bool("interactive", false, "read a line from the terminal and echo it")
var plotFile = flag.String("plot", "", "write a chart of the worker counters to this file (png, svg, pdf)")
var timer = flag.Bool("timer", false, "run a periodic timer interrupt on the boot hart")
var rounds = flag.Int("rounds", happiness.DefaultOptions().Rounds, "mutex rounds per worker")
var timeout = flag.Duration("timeout", time.Minute, "stop the machine after this long (0 for never)")

func main() {
	flag.Parse()
	mask, ok := trust.ParseLevel(*logLevel)
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown log level %q\n", *logLevel)
		os.Exit(2)
	}
	trust.SetLevel(mask)
	if *harts <= 0 || *harts > joy.MaxCPUs || *boot < 0 || *boot >= *harts {
		fmt.Fprintf(os.Stderr, "need 1..%d harts and a boot hart among them\n", joy.MaxCPUs)
		os.Exit(2)
	}

	sc := sim.DefaultConfig()
	sc.Harts = *harts
	sc.Output = os.Stdout
	sc.Timeout = *timeout
	if *interactive {
		sc.Timeout = 0
	}
	m := sim.NewMachine(sc)

	if *interactive {
		t, err := tty.Open()
		if err != nil {
			log.Fatalf("cannot open the terminal: %v", err)
		}
		defer t.Close()
		go feed(t, m)
	}

	jc := joy.DefaultConfig()
	jc.NCPUs = *harts
	jc.BootHart = uint16(*boot)
	opts := happiness.DefaultOptions()
	opts.Rounds = *rounds
	opts.Timer = *timer
	opts.Echo = *interactive

	var report happiness.Report
	var prog *happiness.Program
	rt := joy.New(jc, simulator.NewBoard(m, uint16(*boot)), func(h riscv.Hart) int {
		return prog.Main(h)
	})
	prog = happiness.New(rt, opts, &report)
	rt.OnEndOfMain(func(status int) {
		if status == 0 {
			report.Log()
		}
	})

	status := m.Run(simulator.Start(rt))
	// the console belonged to the machine
	trust.SetOutput(os.Stderr)

	if *plotFile != "" && len(report.Messages) > 0 {
		if err := report.Plot(*plotFile); err != nil {
			log.Printf("plot: %v", err)
		} else {
			fmt.Printf("# %16s : %s\n", "Chart", *plotFile)
		}
	}
	if !tohost.Passed(m.ToHost().Get()) {
		fmt.Printf("FAIL (status %d, tohost %#x)\n", status, m.ToHost().Get())
		os.Exit(1)
	}
	fmt.Println("PASS")
}

// feed passes keys typed on the terminal to the simulated console.
func feed(t *tty.TTY, m *sim.Machine) {
	for {
		r, err := t.ReadRune()
		if err != nil {
			return
		}
		if r == 3 { // ^C
			m.Halt(130)
			return
		}
		m.Feed([]byte(string(r)))
	}
}
