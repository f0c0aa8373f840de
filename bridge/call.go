package bridge

import (
	"github.com/wippyai/wlb/errors"
	"github.com/wippyai/wlb/process"
)

// Call dispatches a named bridge function with host arguments. Names:
//
//	m(module)                    -> *Module
//	find_function_modules(name)  -> []string
//	peek8..peek64(addr)          -> uint8..uint64
//	poke8..poke64(addr, value)   -> nil
//	peek_string(addr, limit)     -> string
//	types()                      -> *Types
//	computer_name(), user_name() -> string
func (c *Context) Call(name string, args ...any) (any, error) {
	switch name {
	case "m":
		s, err := stringArg(name, args, 0)
		if err != nil {
			return nil, err
		}
		return c.Module(s)

	case "find_function_modules":
		s, err := stringArg(name, args, 0)
		if err != nil {
			return nil, err
		}
		return c.FindFunctionModules(s)

	case "types":
		return c.types, nil

	case "computer_name":
		return process.ComputerName()

	case "user_name":
		return process.UserName()

	case "peek8", "peek16", "peek32", "peek64":
		addr, err := c.addrArg(name, args)
		if err != nil {
			return nil, err
		}
		switch name {
		case "peek8":
			return c.Peek8(addr), nil
		case "peek16":
			return c.Peek16(addr), nil
		case "peek32":
			return c.Peek32(addr), nil
		default:
			return c.Peek64(addr), nil
		}

	case "peek_string":
		addr, err := c.addrArg(name, args)
		if err != nil {
			return nil, err
		}
		limit := 4096
		if len(args) > 1 {
			n, err := toUnsigned(args[1], 31)
			if err != nil {
				return nil, err
			}
			limit = int(n)
		}
		return c.PeekString(addr, limit), nil

	case "poke8", "poke16", "poke32", "poke64":
		addr, err := c.addrArg(name, args)
		if err != nil {
			return nil, err
		}
		if len(args) < 2 {
			return nil, missingArg(name, 1)
		}
		switch name {
		case "poke8":
			v, err := toUnsigned(args[1], 8)
			if err != nil {
				return nil, err
			}
			c.Poke8(addr, uint8(v))
		case "poke16":
			v, err := toUnsigned(args[1], 16)
			if err != nil {
				return nil, err
			}
			c.Poke16(addr, uint16(v))
		case "poke32":
			v, err := toUnsigned(args[1], 32)
			if err != nil {
				return nil, err
			}
			c.Poke32(addr, uint32(v))
		default:
			v, err := toWord(args[1])
			if err != nil {
				return nil, err
			}
			c.Poke64(addr, v)
		}
		return nil, nil
	}

	return nil, errors.NotFound(errors.PhaseHost, "bridge function", name)
}

func missingArg(fn string, i int) error {
	return errors.New(errors.PhaseHost, errors.KindInvalidInput).
		Path(fn).
		Detail("missing argument %d", i+1).
		Build()
}

func stringArg(fn string, args []any, i int) (string, error) {
	if len(args) <= i {
		return "", missingArg(fn, i)
	}
	return toString(args[i])
}

// addrArg reads the address argument. Zero is rejected since every peek or
// poke at it faults, as is any address when memory is not local.
func (c *Context) addrArg(fn string, args []any) (uint64, error) {
	if err := c.RawAccess(); err != nil {
		return 0, err
	}
	if len(args) == 0 {
		return 0, missingArg(fn, 0)
	}
	addr, err := toWord(args[0])
	if err != nil {
		return 0, err
	}
	if addr == 0 {
		return 0, errors.New(errors.PhaseHost, errors.KindInvalidInput).
			Path(fn).
			Detail("null address").
			Build()
	}
	return addr, nil
}
