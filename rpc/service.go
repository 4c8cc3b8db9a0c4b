package rpc

import (
	"context"
	"sort"

	"github.com/honganh1206/relay/serial"
)

// Service is a namespace in the callable tree. Children are registered
// during construction and immutable afterwards; the tree is then safe to
// share across however many sessions serve it.
type Service struct {
	parent   Callable
	children []namedChild
	byName   map[string]int
}

type namedChild struct {
	name     string
	callable Callable
}

var _ Callable = (*Service)(nil)

// NewService returns an empty namespace.
func NewService() *Service {
	return &Service{byName: make(map[string]int)}
}

// Register adds a child under the given name and back-references it to this
// namespace. It returns the service for chaining and panics on duplicate
// names: the tree is declared once, at startup.
func (s *Service) Register(name string, child Callable) *Service {
	if _, taken := s.byName[name]; taken {
		panic("rpc: duplicate child name " + name)
	}
	s.byName[name] = len(s.children)
	s.children = append(s.children, namedChild{name: name, callable: child})
	child.SetParent(s)
	return s
}

func (s *Service) Call(ctx context.Context, call Call) error {
	return NewError(CodeMethodNotFound, "this is a namespace, not a method")
}

func (s *Service) ChildByName(name string) Callable {
	index, ok := s.byName[name]
	if !ok {
		return nil
	}
	return s.children[index].callable
}

func (s *Service) ChildByIndex(index int) Callable {
	if index < 0 || index >= len(s.children) {
		return nil
	}
	return s.children[index].callable
}

func (s *Service) ChildName(child Callable) (string, int, bool) {
	for index, entry := range s.children {
		if entry.callable == child {
			return entry.name, index, true
		}
	}
	return "", 0, false
}

func (s *Service) Parent() Callable { return s.parent }

func (s *Service) SetParent(parent Callable) { s.parent = parent }

func (s *Service) Describe() (*MethodDesc, error) { return nil, nil }

func (s *Service) DescribeMethods(filler DescriptionFiller) error {
	for _, entry := range s.children {
		desc, err := entry.callable.Describe()
		if err != nil {
			return err
		}
		if desc != nil {
			if err := filler.AddMethod(entry.name, desc.Doc, desc.Params, desc.Ret, desc.RetDoc); err != nil {
				return err
			}
			continue
		}
		if err := filler.AddNamespace(entry.name, entry.callable.DescribeMethods); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) ListTypes(add func(name string, fields []serial.FieldDescription) error) error {
	seen := make(map[string]bool)
	dedup := func(name string, fields []serial.FieldDescription) error {
		if seen[name] {
			return nil
		}
		seen[name] = true
		return add(name, fields)
	}
	for _, entry := range s.children {
		if err := entry.callable.ListTypes(dedup); err != nil {
			return err
		}
	}
	return nil
}

// ChildNames lists the registration names in order, for tooling.
func (s *Service) ChildNames() []string {
	names := make([]string, 0, len(s.children))
	for _, entry := range s.children {
		names = append(names, entry.name)
	}
	return names
}

// MethodPaths lists the dotted paths of every procedure under the service,
// sorted, for tooling.
func (s *Service) MethodPaths() []string {
	var paths []string
	var walk func(prefix string, c Callable)
	walk = func(prefix string, c Callable) {
		for i := 0; ; i++ {
			child := c.ChildByIndex(i)
			if child == nil {
				break
			}
			name, _, _ := c.ChildName(child)
			full := name
			if prefix != "" {
				full = prefix + "." + name
			}
			if desc, _ := child.Describe(); desc != nil {
				paths = append(paths, full)
			} else {
				walk(full, child)
			}
		}
	}
	walk("", s)
	sort.Strings(paths)
	return paths
}
