package gen

import (
	"github.com/cheekybits/genny/generic"
)

type Generic generic.Type
