package kv

import (
	"encoding/hex"
	"fmt"
	"strconv"

	"github.com/ValentinKolb/mKV/lib/store"
	"github.com/spf13/cobra"
)

var (
	setValueType string

	setCmd = &cobra.Command{
		Use:   "set [key] [value]",
		Short: "Sets the value for a key",
		Long:  "Sets the value for a key. The --type flag selects how the value is interpreted: string, number, boolean or buffer (hex encoded).",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := args[0]
			value, err := parseValue(args[1], setValueType)
			if err != nil {
				return err
			}
			if err := rpcStore.Set(key, value); err != nil {
				return err
			} else {
				fmt.Println("set successfully")
			}
			return nil
		},
	}
	setIfUnsetCmd = &cobra.Command{
		Use:   "setnx [key] [value]",
		Short: "Sets the value for a key if the key is not already set",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := args[0]
			value, err := parseValue(args[1], setValueType)
			if err != nil {
				return err
			}
			inserted, err := rpcStore.SetIfUnset(key, value)
			if err != nil {
				return err
			}
			fmt.Printf("inserted=%t\n", inserted)
			return nil
		},
	}
	getCmd = &cobra.Command{
		Use:   "get [key]",
		Short: "Reads the value for a key regardless of its type",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := args[0]
			if value, ok, err := rpcStore.Get(key); err != nil {
				return err
			} else if !ok {
				fmt.Printf("key=%s, found=false\n", key)
			} else {
				fmt.Printf("key=%s, found=true, type=%s, value=%s\n", key, value.Type, formatValue(value))
			}
			return nil
		},
	}
	getBooleanCmd = &cobra.Command{
		Use:   "getb [key]",
		Short: "Reads the boolean value for a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := args[0]
			if value, ok, err := rpcStore.GetBoolean(key); err != nil {
				return err
			} else {
				fmt.Printf("key=%s, found=%t, value=%t\n", key, ok, value)
			}
			return nil
		},
	}
	getNumberCmd = &cobra.Command{
		Use:   "getn [key]",
		Short: "Reads the number value for a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := args[0]
			if value, ok, err := rpcStore.GetNumber(key); err != nil {
				return err
			} else {
				fmt.Printf("key=%s, found=%t, value=%v\n", key, ok, value)
			}
			return nil
		},
	}
	getStringCmd = &cobra.Command{
		Use:   "gets [key]",
		Short: "Reads the string value for a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := args[0]
			if value, ok, err := rpcStore.GetString(key); err != nil {
				return err
			} else {
				fmt.Printf("key=%s, found=%t, value=%s\n", key, ok, value)
			}
			return nil
		},
	}
	getBufferCmd = &cobra.Command{
		Use:   "getbuf [key]",
		Short: "Reads the buffer value for a key (hex encoded)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := args[0]
			if value, ok, err := rpcStore.GetBuffer(key); err != nil {
				return err
			} else {
				fmt.Printf("key=%s, found=%t, value=%s\n", key, ok, hex.EncodeToString(value))
			}
			return nil
		},
	}
	containsCmd = &cobra.Command{
		Use:   "contains [key]",
		Short: "Checks if a key exists",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := args[0]
			if found, err := rpcStore.Contains(key); err != nil {
				return err
			} else {
				fmt.Printf("key=%s, found=%t\n", key, found)
			}
			return nil
		},
	}
	delCmd = &cobra.Command{
		Use:   "del [key]",
		Short: "Deletes a key value pair",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := args[0]
			if err := rpcStore.Delete(key); err != nil {
				return err
			} else {
				fmt.Println("delete successfully")
			}
			return nil
		},
	}
	keysCmd = &cobra.Command{
		Use:   "keys",
		Short: "Lists all keys",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			keys, err := rpcStore.AllKeys()
			if err != nil {
				return err
			}
			for _, key := range keys {
				fmt.Println(key)
			}
			fmt.Printf("(%d keys)\n", len(keys))
			return nil
		},
	}
	clearCmd = &cobra.Command{
		Use:   "clear",
		Short: "Deletes all key value pairs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := rpcStore.DeleteAll(); err != nil {
				return err
			}
			fmt.Println("cleared successfully")
			return nil
		},
	}
	recryptCmd = &cobra.Command{
		Use:   "recrypt [newKey]",
		Short: "Re-encrypts the store with a new encryption key",
		Long:  "Re-encrypts the store with a new encryption key (max 16 bytes). Called without an argument the encryption is removed.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var newKey []byte
			if len(args) == 1 && args[0] != "" {
				newKey = []byte(args[0])
			}
			if err := rpcStore.Recrypt(newKey); err != nil {
				return err
			}
			fmt.Println("recrypted successfully")
			return nil
		},
	}
	trimCmd = &cobra.Command{
		Use:   "trim",
		Short: "Compacts the backing storage",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := rpcStore.Trim(); err != nil {
				return err
			}
			fmt.Println("trimmed successfully")
			return nil
		},
	}
	sizeCmd = &cobra.Command{
		Use:   "size",
		Short: "Reports the used storage size in bytes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			size, err := rpcStore.Size()
			if err != nil {
				return err
			}
			fmt.Printf("size=%d bytes\n", size)
			return nil
		},
	}
)

func init() {
	setCmd.Flags().StringVar(&setValueType, "type", "string", "type of the value (string, number, boolean, buffer)")
	setIfUnsetCmd.Flags().StringVar(&setValueType, "type", "string", "type of the value (string, number, boolean, buffer)")
}

// parseValue converts a raw command line argument into a typed store value
func parseValue(raw, valueType string) (store.Value, error) {
	switch valueType {
	case "string":
		return store.StringValue(raw), nil
	case "number":
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return store.Value{}, fmt.Errorf("value must be a number: %w", err)
		}
		return store.NumberValue(f), nil
	case "boolean":
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return store.Value{}, fmt.Errorf("value must be a boolean: %w", err)
		}
		return store.BooleanValue(b), nil
	case "buffer":
		b, err := hex.DecodeString(raw)
		if err != nil {
			return store.Value{}, fmt.Errorf("buffer value must be hex encoded: %w", err)
		}
		return store.BufferValue(b), nil
	default:
		return store.Value{}, fmt.Errorf("invalid value type %s (expected one of: string, number, boolean, buffer)", valueType)
	}
}

// formatValue renders a typed value for display
func formatValue(v store.Value) string {
	switch v.Type {
	case store.TypeBoolean:
		return strconv.FormatBool(v.Boolean)
	case store.TypeNumber:
		return strconv.FormatFloat(v.Number, 'g', -1, 64)
	case store.TypeString:
		return v.String
	case store.TypeBuffer:
		return hex.EncodeToString(v.Buffer)
	default:
		return "<unknown>"
	}
}
