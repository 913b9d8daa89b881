package joy

import (
	"fmt"
	"io"
)

// Console is the character device of the board.  Either hook may be
// missing, in which case output is dropped and input reads as EOF.
type Console struct {
	putchar func(c byte)
	getchar func() (byte, bool)
}

// SetConsole installs the console hooks.  Boards call this from Init.
func (rt *Runtime) SetConsole(putchar func(c byte), getchar func() (byte, bool)) {
	rt.console = Console{putchar: putchar, getchar: getchar}
}

func (rt *Runtime) Console() *Console {
	return &rt.console
}

func (c *Console) Write(p []byte) (int, error) {
	if c.putchar == nil {
		return len(p), nil
	}
	for _, b := range p {
		c.putchar(b)
	}
	return len(p), nil
}

func (c *Console) WriteString(s string) (int, error) {
	return c.Write([]byte(s))
}

// ReadByte returns the next input character, io.EOF if there is none now.
func (c *Console) ReadByte() (byte, error) {
	if c.getchar == nil {
		return 0, io.EOF
	}
	b, ok := c.getchar()
	if !ok {
		return 0, io.EOF
	}
	return b, nil
}

func (c *Console) Logf(format string, values ...interface{}) {
	if format == "" {
		return
	}
	c.WriteString(fmt.Sprintf(format, values...))
	if format[len(format)-1] != '\n' {
		c.WriteString("\n")
	}
}
