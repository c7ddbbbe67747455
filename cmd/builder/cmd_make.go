package main

import (
	"fmt"
	"io"
	"reflect"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newMakeCmd(f *flags) *cobra.Command {
	return &cobra.Command{
		Use:   "make <alias>",
		Short: "Resolve an alias and print the value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := load(cmd.Context(), cmd, f)
			if err != nil {
				return err
			}
			defer a.Close()

			v, err := a.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printValue(cmd.OutOrStdout(), v)
		},
	}
}

// printValue prints plain data as YAML and anything else with %#v.
func printValue(w io.Writer, v any) error {
	if isPlain(reflect.ValueOf(v)) {
		if out, err := yaml.Marshal(v); err == nil {
			_, err = w.Write(out)
			return err
		}
	}
	_, err := fmt.Fprintf(w, "%#v\n", v)
	return err
}

func isPlain(v reflect.Value) bool {
	if !v.IsValid() {
		return true
	}
	switch v.Kind() {
	case reflect.Interface:
		return v.IsNil() || isPlain(v.Elem())
	case reflect.Map:
		iter := v.MapRange()
		for iter.Next() {
			if !isPlain(iter.Value()) {
				return false
			}
		}
		return true
	case reflect.Slice, reflect.Array:
		for i := 0; i < v.Len(); i++ {
			if !isPlain(v.Index(i)) {
				return false
			}
		}
		return true
	case reflect.Pointer, reflect.Struct, reflect.Func, reflect.Chan, reflect.UnsafePointer:
		return false
	}
	return true
}
