package server

import (
	"fmt"

	"go.trai.ch/udpbd-vexfat/internal/core/ports"
	"go.trai.ch/udpbd-vexfat/internal/vexfat"
)

// volumeBytes is the size of the emulated disk.
const volumeBytes = 10 * 1024 * 1024 * 1024 // 10 GiB

// oplFolders is the standard Open PS2 Loader directory layout.
var oplFolders = []string{"APPS", "ART", "CD", "CFG", "CHT", "LNG", "THM", "VMC"}

// NewOPLDevice builds a virtual exFAT volume with the OPL folder layout
// and the given file mapped under DVD/. When prefix is non-empty the
// whole layout is nested in a directory of that name.
func NewOPLDevice(log ports.Logger, file, prefix string) (*vexfat.Device, error) {
	clusterCount := uint32(volumeBytes / vexfat.ClusterBytes)

	dev, err := vexfat.NewDevice(clusterCount)
	if err != nil {
		return nil, err
	}

	root := dev.RootCluster()
	if prefix != "" {
		root, err = dev.AddDirectory(root, prefix)
		if err != nil {
			return nil, err
		}
	}

	for _, name := range oplFolders {
		if _, err := dev.AddDirectory(root, name); err != nil {
			return nil, err
		}
	}

	dvd, err := dev.AddDirectory(root, "DVD")
	if err != nil {
		return nil, err
	}
	if err := dev.AddFile(dvd, file); err != nil {
		return nil, err
	}

	log.Info("emulating block device")
	log.Info(fmt.Sprintf(" - size = %d MB / %d MiB",
		volumeBytes/(1000*1000), volumeBytes/(1024*1024)))

	return dev, nil
}
