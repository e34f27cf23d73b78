package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// A byte size command line flag accepting k/m/g suffixes (e.g. "64m")
type ByteSize uint32

func (b *ByteSize) String() string {
	v := uint32(*b)
	switch {
	case v != 0 && v&0x3fffffff == 0:
		return fmt.Sprintf("%dg", v>>30)
	case v != 0 && v&0xfffff == 0:
		return fmt.Sprintf("%dm", v>>20)
	case v != 0 && v&0x3ff == 0:
		return fmt.Sprintf("%dk", v>>10)
	}
	return fmt.Sprintf("%d", v)
}

func (b *ByteSize) Set(s string) error {
	s = strings.ToLower(strings.TrimSpace(s))
	shift := uint(0)
	switch {
	case strings.HasSuffix(s, "kb"), strings.HasSuffix(s, "k"):
		shift = 10
		s = strings.TrimSuffix(strings.TrimSuffix(s, "b"), "k")
	case strings.HasSuffix(s, "mb"), strings.HasSuffix(s, "m"):
		shift = 20
		s = strings.TrimSuffix(strings.TrimSuffix(s, "b"), "m")
	case strings.HasSuffix(s, "gb"), strings.HasSuffix(s, "g"):
		shift = 30
		s = strings.TrimSuffix(strings.TrimSuffix(s, "b"), "g")
	}
	v, err := strconv.ParseUint(s, 0, 32)
	if err != nil {
		return errors.Wrapf(err, "invalid byte size %q", s)
	}
	if v<<shift > 0xffffffff {
		return errors.Errorf("byte size %q out of range", s)
	}
	*b = ByteSize(v << shift)
	return nil
}
