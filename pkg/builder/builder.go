package builder

import (
	"fmt"

	omap "github.com/elliotchance/orderedmap"

	"github.com/wendizhou99-cell/Radar/pkg/lifecycle"
	"github.com/wendizhou99-cell/Radar/pkg/pipeline"
	"github.com/wendizhou99-cell/Radar/pkg/radar"
	"github.com/wendizhou99-cell/Radar/pkg/radar_libraries/logger"
)

//PacketEmitter is a module that pushes admitted raw packets downstream.
type PacketEmitter interface {
	SetPacketCallback(cb pipeline.PacketCallback)
}

//PacketHandler is a module that accepts pushed raw packets.
type PacketHandler interface {
	HandlePacket(packet *radar.RawDataPacket) error
}

//ResultEmitter is a module that pushes processing results downstream.
type ResultEmitter interface {
	SetResultCallback(cb pipeline.ResultCallback)
}

//ResultHandler is a module that accepts pushed processing results.
type ResultHandler interface {
	SubmitResult(result *radar.ProcessingResult) error
}

type ModuleInfo struct {
	instance lifecycle.Module
}

//Instance exposes the held module, mainly for health iteration.
func (mi *ModuleInfo) Instance() lifecycle.Module {
	return mi.instance
}

//Definition of the main pipeline builder:
//This entity should know how to instantiate all the pipeline modules
//along with their packet and result routes given a blueprint mapping.
type Builder struct {
	//The pipeline blueprint loader
	loader *blueprintLoader
	log    logger.Logger
	//Mapping from a module type to its constructor.
	constructors map[string]*constructor
	//Track module information in order of creation, the startup order is important.
	modules *omap.OrderedMap
}

//Add module constructor to builder's constructors map:
//typeName is the module implementation type identifier.
//creator is the function used to create the specific module of this type.
//params is an optional list of params to be passed to the creator function.
//Note: Using variadic args for params here so user will not be forced to specify
//empty param list in case there are none to pass.
func (b *Builder) AddConstructor(typeName string, creator Creator, params ...Param) error {
	if _, exists := b.constructors[typeName]; exists {
		return fmt.Errorf("constructor %s already exists", typeName)
	}
	b.constructors[typeName] = newConstructor(creator, params...) //variadic passthrough
	return nil
}

//Clear the pipeline and constructors map.
func (b *Builder) Clear() {
	b.clearPipeline()
	b.constructors = make(map[string]*constructor)
}

//Create, initialize and start the modules in same order as they were listed
//on the blueprint. Return list of encountered errors.
//NOTE: Shutdown API is not called automatically in case of a Run error as it would be cumbersome
//to track back also possible Shutdown errors added to same Run errors list.
//The user of the Builder API should check if Run call had errors and call the Shutdown API
//to shut off any running modules which were able to run.
func (b *Builder) Run() []error {
	//Check for previous pipeline
	if b.modules.Len() > 0 {
		return []error{
			fmt.Errorf("pipeline was already run"),
		}
	}

	//Create the pipeline and cleanup on error
	if err := b.createPipeline(); err != nil {
		b.clearPipeline()
		return []error{
			err,
		}
	}

	//Bring the modules up in listing order
	errors := []error{}
	for entry := b.modules.Front(); entry != nil; entry = entry.Next() {
		info, ok := (entry.Value).(*ModuleInfo)
		if !ok {
			errors = append(errors, fmt.Errorf("unexpected module info entry in modules map"))
			continue
		}
		if err := info.instance.Initialize(); err != nil {
			errors = append(errors, err)
			continue
		}
		if err := info.instance.Start(); err != nil {
			errors = append(errors, err)
		}
	}
	return errors
}

//Shutdown the modules in their reverse startup order.
//Return list of encountered errors.
func (b *Builder) Shutdown() []error {
	errors := []error{}
	for entry := b.modules.Back(); entry != nil; entry = entry.Prev() {
		if info, ok := (entry.Value).(*ModuleInfo); !ok {
			errors = append(errors, fmt.Errorf("unexpected module info entry in modules map"))
		} else if err := info.instance.Cleanup(); err != nil {
			errors = append(errors, err)
		}
	}
	return errors
}

//Create the pipeline from the read blueprint.
func (b *Builder) createPipeline() error {
	//Create the module instances
	for _, info := range b.loader.modules {
		if err := b.createModule(info["type"], info["name"]); err != nil {
			return err
		}
	}

	//Create packet routes
	for _, route := range b.loader.packetRoutes {
		if err := b.addPacketRoute(route["source"], route["destination"]); err != nil {
			return err
		}
	}

	//Create result routes
	for _, route := range b.loader.resultRoutes {
		if err := b.addResultRoute(route["source"], route["destination"]); err != nil {
			return err
		}
	}
	return nil
}

//Create a module and add it into ordered modules map
func (b *Builder) createModule(typeName string, name string) error {
	if _, exists := b.modules.Get(name); exists {
		return fmt.Errorf("module name %s already exists", name)
	}

	//Instantiate the module according to its type
	ctor, exists := b.constructors[typeName]
	if !exists {
		return fmt.Errorf("failed to find constructor for module type %s", typeName)
	}
	instance, err := ctor.call()
	if err != nil {
		return fmt.Errorf("creation of module (%s, %s) failed: %s", typeName, name, err)
	}
	b.modules.Set(name, &ModuleInfo{
		instance: instance,
	})
	return nil
}

//Clear the existing pipeline
func (b *Builder) clearPipeline() {
	for _, key := range b.modules.Keys() {
		b.modules.Delete(key)
	}
}

//Get entry from modules map
func (b *Builder) getModuleInfo(name string) (*ModuleInfo, error) {
	entry, exists := b.modules.Get(name)
	if !exists {
		return nil, fmt.Errorf("failed to find module info for %s", name)
	}
	info, ok := entry.(*ModuleInfo)
	if !ok {
		return nil, fmt.Errorf("unexpected module info entry for name %s", name)
	}
	return info, nil
}

//Add packet route:
//Packets admitted by the source module are pushed into the destination handler.
func (b *Builder) addPacketRoute(srcName string, dstName string) error {
	srcInfo, err := b.getModuleInfo(srcName)
	if err != nil {
		return err
	}
	dstInfo, err := b.getModuleInfo(dstName)
	if err != nil {
		return err
	}
	emitter, ok := (srcInfo.instance).(PacketEmitter)
	if !ok {
		return fmt.Errorf("packet route source %s does not emit packets", srcName)
	}
	handler, ok := (dstInfo.instance).(PacketHandler)
	if !ok {
		return fmt.Errorf("packet route destination %s does not handle packets", dstName)
	}
	emitter.SetPacketCallback(func(packet *radar.RawDataPacket) {
		if err := handler.HandlePacket(packet); err != nil {
			b.log.Warnf("packet route %s -> %s: %s", srcName, dstName, err)
		}
	})
	return nil
}

//Add result route:
//Results produced by the source module are pushed into the destination handler.
func (b *Builder) addResultRoute(srcName string, dstName string) error {
	srcInfo, err := b.getModuleInfo(srcName)
	if err != nil {
		return err
	}
	dstInfo, err := b.getModuleInfo(dstName)
	if err != nil {
		return err
	}
	emitter, ok := (srcInfo.instance).(ResultEmitter)
	if !ok {
		return fmt.Errorf("result route source %s does not emit results", srcName)
	}
	handler, ok := (dstInfo.instance).(ResultHandler)
	if !ok {
		return fmt.Errorf("result route destination %s does not handle results", dstName)
	}
	emitter.SetResultCallback(func(result *radar.ProcessingResult) {
		if err := handler.SubmitResult(result); err != nil {
			b.log.Warnf("result route %s -> %s: %s", srcName, dstName, err)
		}
	})
	return nil
}

//The builder constructor gets a yaml file as a blueprint.
func NewBuilder(blueprintFile string, log logger.Logger) (*Builder, error) {
	loader, err := newBlueprintLoader(blueprintFile)
	if err != nil {
		return nil, err
	}
	return &Builder{
		loader:       loader,
		log:          log,
		constructors: make(map[string]*constructor),
		modules:      omap.NewOrderedMap(),
	}, nil
}
