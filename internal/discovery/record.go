package discovery

import (
	"github.com/dshills/plugkit/internal/codeload"
	"github.com/dshills/plugkit/internal/container"
	"github.com/dshills/plugkit/internal/resolve"
)

// PluginRecord is a discovered plugin type and the container it came from.
type PluginRecord struct {
	Type      codeload.Type
	Container container.ID
}

// Disabled is a container that will not be scanned or loaded.
type Disabled struct {
	Container *container.Container
	Reason    resolve.Reason
	Err       error
}
