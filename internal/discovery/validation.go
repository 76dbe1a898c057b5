package discovery

import (
	"fmt"

	"github.com/auto-dns/container-deployer/internal/domain"
	"github.com/auto-dns/container-deployer/internal/util"
)

func validateBuildConfig(bc domain.BuildConfig) error {
	seen := make(map[string]struct{}, len(bc.Build))
	for i, img := range bc.Build {
		if img.File == "" {
			return fmt.Errorf("build entry %d has no file", i)
		}
		if img.Tag == "" {
			return fmt.Errorf("build entry %d has no tag", i)
		}
		if _, dup := seen[img.Tag]; dup {
			return fmt.Errorf("duplicate tag %q", img.Tag)
		}
		seen[img.Tag] = struct{}{}
	}
	return nil
}

type imageReference struct {
	container string
	image     string
}

func danglingReferences(bc domain.BuildConfig, rc domain.RunConfig) []imageReference {
	declared := make(map[string]struct{}, len(bc.Build))
	for _, tag := range bc.Tags() {
		declared[tag] = struct{}{}
	}
	var refs []imageReference
	for _, name := range util.SortedKeys(rc) {
		if _, ok := declared[rc[name].Image]; !ok {
			refs = append(refs, imageReference{container: name, image: rc[name].Image})
		}
	}
	return refs
}
