package badger

import "fmt"

const checkpointPrefix = "chkpt"

func makeCheckpointKey(name string) []byte {
	return []byte(fmt.Sprintf("%s:%s", checkpointPrefix, name))
}
