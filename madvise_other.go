//go:build !linux

package tapesort

func adviseSequential(data []byte) {}
