package bin

import (
	"mikuos/kernel/loader"
	"mikuos/usr/image"
	"testing"
)

func TestImages(t *testing.T) {
	images, err := Images()
	if err != nil {
		t.Fatal(err)
	}
	if len(images) != len(Names()) {
		t.Fatalf("expected %d images; got %d", len(Names()), len(images))
	}

	seen := make(map[string]bool)
	for _, img := range images {
		if seen[img.Name] {
			t.Fatalf("duplicate program %q", img.Name)
		}
		seen[img.Name] = true

		parsed, err := loader.Parse(img.ELF)
		if err != nil {
			t.Errorf("[%s] expected a loadable image; got %v", img.Name, err)
			continue
		}
		if parsed.Entry != image.TextBase {
			t.Errorf("[%s] expected entry %x; got %x", img.Name, image.TextBase, parsed.Entry)
		}
	}

	for _, name := range InitApps {
		if !seen[name] {
			t.Errorf("initproc runs %q which is not built in", name)
		}
	}
}

func TestBuildUnknown(t *testing.T) {
	if _, err := Build("nope"); err == nil {
		t.Fatal("expected an error for an unknown program")
	}
}

func TestBuildEachProgram(t *testing.T) {
	for _, name := range Names() {
		if _, err := Build(name); err != nil {
			t.Errorf("[%s] expected the program to assemble; got %v", name, err)
		}
	}
}
