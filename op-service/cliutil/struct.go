package cliutil

import (
	"encoding"
	"fmt"
	"math/big"
	"reflect"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/urfave/cli/v2"
)

var (
	addressType  = reflect.TypeOf(common.Address{})
	bigIntType   = reflect.TypeOf((*big.Int)(nil))
	durationType = reflect.TypeOf(time.Duration(0))
)

// PopulateStruct overlays the flags named by `cli` tags onto cfg. Fields whose flag was not
// set on the command line or through its env var keep their current value, so cfg can be
// pre-filled from a config file.
func PopulateStruct(cfg any, ctx *cli.Context) error {
	v := reflect.ValueOf(cfg)
	if v.Kind() != reflect.Ptr || v.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("config must be a pointer to struct")
	}
	v = v.Elem()
	t := v.Type()

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		fieldValue := v.Field(i)

		flag := field.Tag.Get("cli")
		if flag == "" || !fieldValue.CanSet() || !ctx.IsSet(flag) {
			continue
		}
		if err := setFieldValue(fieldValue, field.Type, ctx, flag); err != nil {
			return fmt.Errorf("failed to set field %s: %w", field.Name, err)
		}
	}
	return nil
}

func setFieldValue(fieldValue reflect.Value, fieldType reflect.Type, ctx *cli.Context, flag string) error {
	switch fieldType {
	case addressType:
		addrStr := ctx.String(flag)
		if !common.IsHexAddress(addrStr) {
			return fmt.Errorf("invalid address: %s", addrStr)
		}
		fieldValue.Set(reflect.ValueOf(common.HexToAddress(addrStr)))
		return nil
	case bigIntType:
		val, err := BigIntFlag(ctx, flag)
		if err != nil {
			return err
		}
		fieldValue.Set(reflect.ValueOf(val))
		return nil
	case durationType:
		fieldValue.SetInt(int64(ctx.Duration(flag)))
		return nil
	}

	switch fieldType.Kind() {
	case reflect.String:
		fieldValue.SetString(ctx.String(flag))
	case reflect.Bool:
		fieldValue.SetBool(ctx.Bool(flag))
	case reflect.Uint64:
		fieldValue.SetUint(ctx.Uint64(flag))
	case reflect.Int:
		fieldValue.SetInt(int64(ctx.Int(flag)))
	case reflect.Ptr:
		elem := reflect.New(fieldType.Elem())
		unmarshaler, ok := elem.Interface().(encoding.TextUnmarshaler)
		if !ok {
			return fmt.Errorf("unsupported pointer type: %v", fieldType)
		}
		if err := unmarshaler.UnmarshalText([]byte(ctx.String(flag))); err != nil {
			return err
		}
		fieldValue.Set(elem)
	default:
		return fmt.Errorf("unsupported type: %v", fieldType)
	}
	return nil
}
