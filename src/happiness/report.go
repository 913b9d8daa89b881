package happiness

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"camaraderie/src/lib/trust"
)

// byCPU returns the messages sorted by logical id.
func (r *Report) byCPU() []int {
	idx := make([]int, len(r.Messages))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return r.Messages[idx[a]].CPU < r.Messages[idx[b]].CPU
	})
	return idx
}

// CycleStats is the mean and standard deviation of the cycles the workers
// reported.
func (r *Report) CycleStats() (mean, std float64) {
	if len(r.Messages) == 0 {
		return 0, 0
	}
	xs := make([]float64, len(r.Messages))
	for i, m := range r.Messages {
		xs[i] = float64(m.Cycles)
	}
	if len(xs) == 1 {
		return xs[0], 0
	}
	return stat.MeanStdDev(xs, nil)
}

// Log writes one stats line per worker and a summary.
func (r *Report) Log() {
	for _, i := range r.byCPU() {
		m := r.Messages[i]
		trust.Statsf(fmt.Sprintf("cpu %d", m.CPU), "hart=%d value=%d cycles=%d instret=%d icache=%d dcache=%d",
			m.Hart, m.Value, m.Cycles, m.Instructions, m.ICacheMisses, m.DCacheMisses)
	}
	mean, std := r.CycleStats()
	trust.Statsf("workers", "n=%d cycles mean=%.1f stddev=%.1f", len(r.Messages), mean, std)
	trust.Statsf("main", "cycles=%d instret=%d ipc=%.2f", r.Main.Cycles, r.Main.Instructions, r.Main.IPC())
	if r.Ticks > 0 {
		trust.Statsf("timer", "ticks=%d", r.Ticks)
	}
}

// Plot draws the cycles and instructions of each worker as grouped bars
// and saves the picture to path.  The format follows the file extension.
func (r *Report) Plot(path string) error {
	if len(r.Messages) == 0 {
		return fmt.Errorf("nothing to plot")
	}
	order := r.byCPU()
	cycles := make(plotter.Values, len(order))
	instret := make(plotter.Values, len(order))
	names := make([]string, len(order))
	for j, i := range order {
		m := r.Messages[i]
		cycles[j] = float64(m.Cycles)
		instret[j] = float64(m.Instructions)
		names[j] = fmt.Sprintf("cpu %d (hart %d)", m.CPU, m.Hart)
	}

	p := plot.New()
	p.Title.Text = "Worker counters"
	p.Y.Label.Text = "count"

	w := vg.Points(16)
	cb, err := plotter.NewBarChart(cycles, w)
	if err != nil {
		return err
	}
	cb.Color = plotutil.Color(0)
	cb.Offset = -w / 2
	ib, err := plotter.NewBarChart(instret, w)
	if err != nil {
		return err
	}
	ib.Color = plotutil.Color(1)
	ib.Offset = w / 2

	p.Add(cb, ib)
	p.Legend.Add("mcycle", cb)
	p.Legend.Add("minstret", ib)
	p.Legend.Top = true
	p.NominalX(names...)

	return p.Save(vg.Length(len(order)+2)*vg.Inch, 4*vg.Inch, path)
}
