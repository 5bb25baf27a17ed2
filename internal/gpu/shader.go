//go:build !nogpu

package gpu

import (
	"fmt"

	"github.com/gogpu/naga"
	"github.com/gogpu/wgpu/hal"
)

// compileShaderToSPIRV compiles WGSL source to a SPIR-V word slice.
func compileShaderToSPIRV(wgslSource string) ([]uint32, error) {
	spirvBytes, err := naga.Compile(wgslSource)
	if err != nil {
		return nil, fmt.Errorf("failed to compile shader: %w", err)
	}

	// SPIR-V is little-endian 32-bit words.
	spirvCode := make([]uint32, len(spirvBytes)/4)
	for i := range spirvCode {
		spirvCode[i] = uint32(spirvBytes[i*4]) |
			uint32(spirvBytes[i*4+1])<<8 |
			uint32(spirvBytes[i*4+2])<<16 |
			uint32(spirvBytes[i*4+3])<<24
	}

	return spirvCode, nil
}

// createShaderModule compiles WGSL through naga and creates a hal shader
// module from the resulting SPIR-V.
func createShaderModule(device hal.Device, label, wgslSource string) (hal.ShaderModule, error) {
	if wgslSource == "" {
		return nil, fmt.Errorf("%s shader source is empty", label)
	}
	spirv, err := compileShaderToSPIRV(wgslSource)
	if err != nil {
		return nil, fmt.Errorf("compile %s shader: %w", label, err)
	}
	module, err := device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label: label,
		Source: hal.ShaderSource{
			SPIRV: spirv,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create %s shader module: %w", label, err)
	}
	return module, nil
}
