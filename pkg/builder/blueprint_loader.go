package builder

import (
	"fmt"
	"io/ioutil"

	yaml "gopkg.in/yaml.v2"
)

type blueprintLoader struct {
	modules      []map[string]string
	packetRoutes []map[string]string
	resultRoutes []map[string]string
}

//Load the blueprint YAML file into the inner struct maps.
//File should have 3 main sections of map lists:
//
//# Listing the pipeline module instances to create and run.
//# Instances will be created and run in order of their listing.
//modules:
// - name: <module name>
//   type: <module type>
//# Raw packet flow between instances
//packetRoutes:
// - source: <module name>
//   destination: <module name>
//# Processing result flow between instances
//resultRoutes:
// - source: <module name>
//   destination: <module name>
//
//First section is considered mandatory, other two are optional
//but are most likely to appear as well.
func (b *blueprintLoader) load(filepath string) error {
	content, err := ioutil.ReadFile(filepath)
	if err != nil {
		return err
	}

	var layout map[string][]map[string]string
	if err := yaml.Unmarshal(content, &layout); err != nil {
		return err
	}

	b.modules = layout["modules"]
	b.packetRoutes = layout["packetRoutes"]
	b.resultRoutes = layout["resultRoutes"]

	return b.validate()
}

//Validates the read strings map
func (b *blueprintLoader) validate() error {
	if len(b.modules) == 0 {
		return fmt.Errorf("missing modules information")
	}
	//Tracking of already met module names
	instances := make(map[string]struct{})
	instanceExists := func(name string) bool {
		_, exists := instances[name]
		return exists
	}
	//Check modules section
	for _, moduleInfo := range b.modules {
		//Check that each module entry has name and type entries and their values
		//are not empty
		if err := b.checkKeys([]string{"name", "type"}, moduleInfo); err != nil {
			return err
		}
		name := moduleInfo["name"]
		//Check for duplicate module declaration
		if instanceExists(name) {
			return fmt.Errorf("duplicate module %s in modules map", name)
		} else {
			instances[name] = struct{}{}
		}
	}
	//Check the route sections: both endpoints of every route must refer
	//to a declared module name.
	for _, section := range []struct {
		name   string
		routes []map[string]string
	}{
		{"packetRoutes", b.packetRoutes},
		{"resultRoutes", b.resultRoutes},
	} {
		for _, route := range section.routes {
			if err := b.checkKeys([]string{"source", "destination"}, route); err != nil {
				return err
			}
			source := route["source"]
			if !instanceExists(source) {
				return fmt.Errorf("unknown %s source module %s", section.name, source)
			}
			dest := route["destination"]
			if !instanceExists(dest) {
				return fmt.Errorf("unknown %s destination module %s", section.name, dest)
			}
			if source == dest {
				return fmt.Errorf("%s route from %s to itself", section.name, source)
			}
		}
	}
	return nil
}

//Check that given listed keys exist on string map and that their values are not empty.
func (b *blueprintLoader) checkKeys(keys []string, info map[string]string) error {
	for _, key := range keys {
		if _, exists := info[key]; !exists {
			return fmt.Errorf("key %s is missing from map", key)
		}
		if info[key] == "" {
			return fmt.Errorf("empty value for key %s", key)
		}
	}
	return nil
}

//BlueprintLoader constructor.
func newBlueprintLoader(filepath string) (*blueprintLoader, error) {
	loader := &blueprintLoader{}
	if err := loader.load(filepath); err != nil {
		return nil, err
	}
	return loader, nil
}
