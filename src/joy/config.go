package joy

// MaxCPUs bounds the number of harts the directory can hold.
const MaxCPUs = 64

// MaxHartID bounds the raw hart ids; the id tables are this big.
const MaxHartID = 1024

// NoID marks an unused slot of the id tables.
const NoID = uint16(0xffff)

// Config carries the board constants the runtime is built against.
type Config struct {
	// NCPUs is the number of harts that take part.
	NCPUs int
	// BootHart is the raw id of the hart that runs the primary path.
	BootHart uint16
	// PollBudget is how many times create, join and destroy look at a
	// descriptor before giving up.
	PollBudget int
	// PollDelay is the number of cycles between two looks.
	PollDelay int
}

func DefaultConfig() Config {
	return Config{
		NCPUs:      4,
		BootHart:   0,
		PollBudget: 10000,
		PollDelay:  1000,
	}
}

func (c Config) valid() bool {
	return c.NCPUs > 0 && c.NCPUs <= MaxCPUs && int(c.BootHart) < MaxHartID &&
		c.PollBudget > 0 && c.PollDelay >= 0
}
