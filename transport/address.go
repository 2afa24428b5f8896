package transport

import "fmt"

// Address names a stream socket endpoint: either "tcp" with a
// host:port Path, or "unix" with a filesystem path.
type Address struct {
	Network string // "tcp" or "unix"
	Path    string
}

func (a Address) String() string {
	return fmt.Sprintf("%s://%s", a.Network, a.Path)
}

// TCP builds a tcp Address from a host:port string.
func TCP(hostport string) Address { return Address{Network: "tcp", Path: hostport} }

// Unix builds a unix-domain Address from a filesystem path.
func Unix(path string) Address { return Address{Network: "unix", Path: path} }
