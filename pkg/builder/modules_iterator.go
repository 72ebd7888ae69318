package builder

import (
	"fmt"

	omap "github.com/elliotchance/orderedmap"
)

//Iterator returned by the Builder for iterating over its
//module map entries in order of insertions.
type ModulesIterator struct {
	current *omap.Element
}

//Get iterator to Builder's module map entries so user could iterate over all
//existing modules (as for health checks).
func (b *Builder) GetModulesIterator() *ModulesIterator {
	if b.modules == nil || b.modules.Len() == 0 {
		return nil
	}
	return &ModulesIterator{
		current: b.modules.Front(),
	}
}

//Get next entry iterator or nil if finished all entries.
func (iter *ModulesIterator) Next() *ModulesIterator {
	if iter.current == nil || iter.current.Next() == nil {
		return nil
	}
	return &ModulesIterator{
		current: iter.current.Next(),
	}
}

//Get ModuleInfo pointed currently by the iterator.
//Return nil if reached end of list. Error is returned in case of
//an unexpected ModuleInfo entry within the entries list.
func (iter *ModulesIterator) Current() (*ModuleInfo, error) {
	if iter.current == nil {
		return nil, nil
	}
	info, ok := (iter.current.Value).(*ModuleInfo)
	if !ok {
		return nil, fmt.Errorf("unexpected module info entry in modules map")
	}
	return info, nil
}
