package loader

import (
	"fmt"
	"os"
	"path/filepath"

	"gonum.org/v1/hdf5"

	"corscan/internal/models"
)

// Dataset paths inside a checkpoint file, following the Data Exchange layout
const (
	checkpointGroup = "/exchange"
	checkpointData  = "/exchange/data"
	checkpointFlat  = "/exchange/data_white"
	checkpointDark  = "/exchange/data_dark"
)

// Checkpoint holds the volumes that survive the outlier stage
type Checkpoint struct {
	Data *models.Volume
	Flat *models.Volume
	Dark *models.Volume
}

// CheckpointExists reports whether a checkpoint file is present at path
func CheckpointExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// SaveCheckpoint writes cp to path. The file is written next to its final
// location and renamed into place so a crash never leaves a partial checkpoint.
func SaveCheckpoint(path string, cp *Checkpoint) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create checkpoint directory: %w", err)
	}

	tmp := path + ".partial"
	if err := writeCheckpoint(tmp, cp); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to move checkpoint into place: %w", err)
	}
	return nil
}

func writeCheckpoint(path string, cp *Checkpoint) error {
	f, err := hdf5.CreateFile(path, hdf5.F_ACC_TRUNC)
	if err != nil {
		return fmt.Errorf("create checkpoint %s: %w", path, err)
	}
	defer f.Close()

	g, err := f.CreateGroup(checkpointGroup)
	if err != nil {
		return fmt.Errorf("create group %s: %w", checkpointGroup, err)
	}
	defer g.Close()

	for name, vol := range map[string]*models.Volume{
		checkpointData: cp.Data,
		checkpointFlat: cp.Flat,
		checkpointDark: cp.Dark,
	} {
		if vol == nil {
			return fmt.Errorf("%w: checkpoint volume %s is missing", models.ErrConfiguration, name)
		}
		if err := writeVolume(f, name, vol); err != nil {
			return fmt.Errorf("write %s to %s: %w", name, path, err)
		}
	}
	return nil
}

func writeVolume(f *hdf5.File, name string, vol *models.Volume) error {
	dims := []uint{uint(vol.Angles), uint(vol.Rows), uint(vol.Cols)}
	space, err := hdf5.CreateSimpleDataspace(dims, nil)
	if err != nil {
		return err
	}
	defer space.Close()

	ds, err := f.CreateDataset(name, hdf5.T_NATIVE_DOUBLE, space)
	if err != nil {
		return err
	}
	defer ds.Close()

	return ds.Write(&vol.Data)
}

// LoadCheckpoint reads every volume of a checkpoint written by SaveCheckpoint
func LoadCheckpoint(path string) (*Checkpoint, error) {
	src := HDF5Source{}
	cp := &Checkpoint{}
	for name, dst := range map[string]**models.Volume{
		checkpointData: &cp.Data,
		checkpointFlat: &cp.Flat,
		checkpointDark: &cp.Dark,
	} {
		vol, err := src.Load(path, name, Span{}, Span{})
		if err != nil {
			return nil, fmt.Errorf("load checkpoint: %w", err)
		}
		*dst = vol
	}
	return cp, nil
}
