// Package vkcore bootstraps the Vulkan instance, physical device selection,
// and logical device + queue families that every other Terra package is
// built on top of. It is grounded on vulkan-go-asche's asche.NewPlatform and
// dieselvk.CoreRenderInstance.Init, merged into a single constructor.
package vkcore

import (
	"errors"
	"fmt"
	"log/slog"

	vk "github.com/vulkan-go/vulkan"
)

// SurfaceProvider is the external windowing collaborator contract from
// spec.md §1: given an instance and opaque window/module handles, yield a
// drawable surface. Terra never creates a window itself.
type SurfaceProvider interface {
	CreateSurface(instance vk.Instance) (vk.Surface, error)
	FramebufferSize() (width, height uint32)
}

// QueueFamilies records the indices selected for each role. Transfer and
// compute fall back to the graphics family when no dedicated family exists,
// matching the spec's "ownership transfer is explicit when families differ"
// invariant -- if they're equal no transfer is ever emitted.
type QueueFamilies struct {
	Graphics uint32
	Present  uint32
	Compute  uint32
	Transfer uint32
}

// Device is the selected physical device plus the logical device and
// resolved queues. It corresponds to dieselvk.CoreDevice generalized to
// carry multiple queue roles instead of one render queue.
type Device struct {
	Instance   vk.Instance
	Physical   vk.PhysicalDevice
	Logical    vk.Device
	Properties vk.PhysicalDeviceProperties
	MemoryProps vk.PhysicalDeviceMemoryProperties

	Families QueueFamilies

	GraphicsQueue vk.Queue
	PresentQueue  vk.Queue
	ComputeQueue  vk.Queue
	TransferQueue vk.Queue

	Surface vk.Surface

	log *slog.Logger
}

// Config collects CreateTerraInstance's Vulkan-facing parameters.
type Config struct {
	AppName           string
	APIVersion        uint32
	AppVersion        uint32
	InstanceExts      []string
	DeviceExts        []string
	ValidationLayers  []string
	EnableValidation  bool
	Surface           SurfaceProvider
	Logger            *slog.Logger
}

// New creates the Vulkan instance, selects a physical device with graphics +
// present support, and opens a logical device with as many distinct queue
// families (graphics, present, compute, transfer) as the hardware exposes.
func New(cfg Config) (*Device, error) {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}

	actualInstanceExts, err := InstanceExtensions()
	if err != nil {
		return nil, err
	}
	instanceExts, missing := CheckExisting(actualInstanceExts, cfg.InstanceExts)
	if missing > 0 {
		log.Warn("missing requested instance extensions", "count", missing)
	}

	var layers []string
	if cfg.EnableValidation {
		actualLayers, err := ValidationLayers()
		if err != nil {
			return nil, err
		}
		wanted := cfg.ValidationLayers
		if len(wanted) == 0 {
			wanted = actualLayers
		}
		layers, missing = CheckExisting(actualLayers, wanted)
		if missing > 0 {
			log.Warn("missing requested validation layers", "count", missing)
		}
	}

	var instance vk.Instance
	ret := vk.CreateInstance(&vk.InstanceCreateInfo{
		SType: vk.StructureTypeInstanceCreateInfo,
		PApplicationInfo: &vk.ApplicationInfo{
			SType:              vk.StructureTypeApplicationInfo,
			ApiVersion:         cfg.APIVersion,
			ApplicationVersion: cfg.AppVersion,
			PApplicationName:   SafeString(cfg.AppName),
			PEngineName:        SafeString("terra"),
		},
		EnabledExtensionCount:   uint32(len(instanceExts)),
		PpEnabledExtensionNames: instanceExts,
		EnabledLayerCount:       uint32(len(layers)),
		PpEnabledLayerNames:     layers,
	}, nil, &instance)
	if err := NewError(ret); err != nil {
		return nil, fmt.Errorf("create instance: %w", err)
	}
	vk.InitInstance(instance)

	d := &Device{Instance: instance, log: log}

	var surface vk.Surface
	if cfg.Surface != nil {
		surface, err = cfg.Surface.CreateSurface(instance)
		if err != nil {
			vk.DestroyInstance(instance, nil)
			return nil, fmt.Errorf("create surface: %w", err)
		}
	}
	d.Surface = surface

	if err := d.selectPhysicalDevice(cfg.DeviceExts); err != nil {
		vk.DestroyInstance(instance, nil)
		return nil, err
	}

	if err := d.createLogicalDevice(cfg.DeviceExts, layers); err != nil {
		vk.DestroyInstance(instance, nil)
		return nil, err
	}

	return d, nil
}

func (d *Device) selectPhysicalDevice(wantExts []string) error {
	var count uint32
	ret := vk.EnumeratePhysicalDevices(d.Instance, &count, nil)
	if err := NewError(ret); err != nil {
		return err
	}
	if count == 0 {
		return errors.New("vulkan: no physical devices found")
	}
	gpus := make([]vk.PhysicalDevice, count)
	ret = vk.EnumeratePhysicalDevices(d.Instance, &count, gpus)
	if err := NewError(ret); err != nil {
		return err
	}

	for _, gpu := range gpus {
		families, ok := queueFamiliesFor(gpu, d.Surface)
		if !ok {
			continue
		}
		d.Physical = gpu
		d.Families = families
		vk.GetPhysicalDeviceProperties(gpu, &d.Properties)
		d.Properties.Deref()
		vk.GetPhysicalDeviceMemoryProperties(gpu, &d.MemoryProps)
		d.MemoryProps.Deref()
		return nil
	}
	return errors.New("vulkan: no suitable GPU with graphics/present support found")
}

// queueFamiliesFor inspects one physical device's queue family properties
// and resolves graphics/present/compute/transfer indices, preferring
// dedicated compute/transfer families (async families) when present and
// falling back to the graphics family otherwise.
func queueFamiliesFor(gpu vk.PhysicalDevice, surface vk.Surface) (QueueFamilies, bool) {
	var count uint32
	vk.GetPhysicalDeviceQueueFamilyProperties(gpu, &count, nil)
	if count == 0 {
		return QueueFamilies{}, false
	}
	props := make([]vk.QueueFamilyProperties, count)
	vk.GetPhysicalDeviceQueueFamilyProperties(gpu, &count, props)

	var f QueueFamilies
	graphicsFound, presentFound := false, false
	dedicatedCompute, dedicatedTransfer := false, false

	for i := uint32(0); i < count; i++ {
		props[i].Deref()
		flags := props[i].QueueFlags

		if !graphicsFound && flags&vk.QueueFlags(vk.QueueGraphicsBit) != 0 {
			f.Graphics = i
			graphicsFound = true
		}
		if surface != vk.NullSurface {
			var supported vk.Bool32
			vk.GetPhysicalDeviceSurfaceSupport(gpu, i, surface, &supported)
			if !presentFound && supported.B() {
				f.Present = i
				presentFound = true
			}
		}
		// Prefer a compute-only family (no graphics bit) for async compute.
		if flags&vk.QueueFlags(vk.QueueComputeBit) != 0 && flags&vk.QueueFlags(vk.QueueGraphicsBit) == 0 {
			f.Compute = i
			dedicatedCompute = true
		}
		// Prefer a transfer-only family (no graphics, no compute) for DMA.
		if flags&vk.QueueFlags(vk.QueueTransferBit) != 0 &&
			flags&vk.QueueFlags(vk.QueueGraphicsBit) == 0 &&
			flags&vk.QueueFlags(vk.QueueComputeBit) == 0 {
			f.Transfer = i
			dedicatedTransfer = true
		}
	}

	if !graphicsFound {
		return QueueFamilies{}, false
	}
	if surface != vk.NullSurface && !presentFound {
		return QueueFamilies{}, false
	}
	if !dedicatedCompute {
		f.Compute = f.Graphics
	}
	if !dedicatedTransfer {
		f.Transfer = f.Graphics
	}
	if surface == vk.NullSurface {
		f.Present = f.Graphics
	}
	return f, true
}

func (d *Device) createLogicalDevice(wantExts, layers []string) error {
	actualExts, err := DeviceExtensions(d.Physical)
	if err != nil {
		return err
	}
	exts, missing := CheckExisting(actualExts, wantExts)
	if missing > 0 {
		d.log.Warn("missing requested device extensions", "count", missing)
	}

	unique := map[uint32]bool{
		d.Families.Graphics: true,
		d.Families.Present:  true,
		d.Families.Compute:  true,
		d.Families.Transfer: true,
	}
	priority := []float32{1.0}
	var queueInfos []vk.DeviceQueueCreateInfo
	for family := range unique {
		queueInfos = append(queueInfos, vk.DeviceQueueCreateInfo{
			SType:            vk.StructureTypeDeviceQueueCreateInfo,
			QueueFamilyIndex: family,
			QueueCount:       1,
			PQueuePriorities: priority,
		})
	}

	var device vk.Device
	ret := vk.CreateDevice(d.Physical, &vk.DeviceCreateInfo{
		SType:                   vk.StructureTypeDeviceCreateInfo,
		QueueCreateInfoCount:    uint32(len(queueInfos)),
		PQueueCreateInfos:       queueInfos,
		EnabledExtensionCount:   uint32(len(exts)),
		PpEnabledExtensionNames: exts,
		EnabledLayerCount:       uint32(len(layers)),
		PpEnabledLayerNames:     layers,
	}, nil, &device)
	if err := NewError(ret); err != nil {
		return fmt.Errorf("create device: %w", err)
	}
	d.Logical = device

	var q vk.Queue
	vk.GetDeviceQueue(device, d.Families.Graphics, 0, &q)
	d.GraphicsQueue = q
	vk.GetDeviceQueue(device, d.Families.Present, 0, &q)
	d.PresentQueue = q
	vk.GetDeviceQueue(device, d.Families.Compute, 0, &q)
	d.ComputeQueue = q
	vk.GetDeviceQueue(device, d.Families.Transfer, 0, &q)
	d.TransferQueue = q
	return nil
}

// Destroy tears down the logical device, surface and instance, in that
// order. The caller must have already waited for all queues to go idle.
func (d *Device) Destroy() {
	if d.Logical != nil {
		vk.DestroyDevice(d.Logical, nil)
	}
	if d.Surface != vk.NullSurface {
		vk.DestroySurface(d.Instance, d.Surface, nil)
	}
	if d.Instance != nil {
		vk.DestroyInstance(d.Instance, nil)
	}
}

// WaitIdle blocks until every queue on the logical device is idle.
func (d *Device) WaitIdle() error {
	return NewError(vk.DeviceWaitIdle(d.Logical))
}

// InstanceExtensions lists the instance extensions available on the
// platform. Grounded on asche.InstanceExtensions / dieselvk.InstanceExtensions.
func InstanceExtensions() (names []string, err error) {
	defer CheckErr(&err)
	var count uint32
	OrPanic(NewError(vk.EnumerateInstanceExtensionProperties("", &count, nil)))
	list := make([]vk.ExtensionProperties, count)
	OrPanic(NewError(vk.EnumerateInstanceExtensionProperties("", &count, list)))
	for _, ext := range list {
		ext.Deref()
		names = append(names, vk.ToString(ext.ExtensionName[:]))
	}
	return names, nil
}

// DeviceExtensions lists the extensions available on the given physical device.
func DeviceExtensions(gpu vk.PhysicalDevice) (names []string, err error) {
	defer CheckErr(&err)
	var count uint32
	OrPanic(NewError(vk.EnumerateDeviceExtensionProperties(gpu, "", &count, nil)))
	list := make([]vk.ExtensionProperties, count)
	OrPanic(NewError(vk.EnumerateDeviceExtensionProperties(gpu, "", &count, list)))
	for _, ext := range list {
		ext.Deref()
		names = append(names, vk.ToString(ext.ExtensionName[:]))
	}
	return names, nil
}

// ValidationLayers lists the validation layers available on the platform.
func ValidationLayers() (names []string, err error) {
	defer CheckErr(&err)
	var count uint32
	OrPanic(NewError(vk.EnumerateInstanceLayerProperties(&count, nil)))
	list := make([]vk.LayerProperties, count)
	OrPanic(NewError(vk.EnumerateInstanceLayerProperties(&count, list)))
	for _, layer := range list {
		layer.Deref()
		names = append(names, vk.ToString(layer.LayerName[:]))
	}
	return names, nil
}
