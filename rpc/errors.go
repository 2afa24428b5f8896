package rpc

import (
	"fmt"

	"ipcrpc/ipcerr"
)

func unknownFunctionError(id uint32) error {
	return ipcerr.New(ipcerr.BadMessage, fmt.Sprintf("unknown function id %d", id), nil)
}
