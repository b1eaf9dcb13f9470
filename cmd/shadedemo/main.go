// Command shadedemo builds the example shaders and prints what the
// compiler produces: the WGSL text, the resolved layout summary and,
// on request, the SPIR-V translation.
package main

import (
	"encoding/binary"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/shade"
	"github.com/gogpu/shade/pipeline"
	"golang.org/x/image/math/f32"
)

func main() {
	var (
		demo  = flag.String("demo", "triangle", "shader to build: triangle or textured")
		out   = flag.String("out", "", "write the WGSL text to this file instead of stdout")
		spirv = flag.String("spirv", "", "also compile to SPIR-V and write the binary here")
	)
	flag.Parse()

	var (
		m   *shade.ShaderModule
		err error
	)
	switch *demo {
	case "triangle":
		m, err = triangleShader()
	case "textured":
		m, err = texturedShader()
	default:
		log.Fatalf("unknown demo %q (want triangle or textured)", *demo)
	}
	if err != nil {
		log.Fatalf("compile failed: %v", err)
	}

	text := m.Emit()
	if *out == "" {
		fmt.Print(text)
	} else if err := os.WriteFile(*out, []byte(text), 0o644); err != nil {
		log.Fatalf("write %s: %v", *out, err)
	}

	layout := m.Layout()
	log.Printf("%s: fingerprint %#x, %d vertex buffers, %d bind groups",
		m.Label(), m.Fingerprint(), len(layout.Buffers), len(layout.Groups))

	if *spirv != "" {
		cache := pipeline.New(nil)
		artifact, err := cache.GetOrCreate(m, pipeline.Target{
			Format: gputypes.TextureFormatBGRA8Unorm,
		})
		if err != nil {
			log.Fatalf("SPIR-V compile failed: %v", err)
		}
		if err := os.WriteFile(*spirv, wordBytes(artifact.SPIRV), 0o644); err != nil {
			log.Fatalf("write %s: %v", *spirv, err)
		}
		log.Printf("%s: %d SPIR-V words written to %s", m.Label(), len(artifact.SPIRV), *spirv)
	}
}

// Vertex is the per-vertex record both demos read from.
type Vertex struct {
	Pos   f32.Vec2
	Color f32.Vec3
}

// triangleShader colors each fragment by its interpolated vertex color.
func triangleShader() (*shade.ShaderModule, error) {
	s := shade.New()
	in := s.Vertex(Vertex{})
	place := shade.Vec4(in.Read("Pos"), 0.0, 1.0)
	color := shade.Vec4(shade.Transfer(in.Read("Color")), 1.0)
	return shade.Compile(s, shade.Out{Place: place, Color: color},
		shade.WithLabel("triangle"))
}

// TexVertex carries a texture coordinate instead of a color.
type TexVertex struct {
	Pos f32.Vec2
	UV  f32.Vec2
}

// Material binds a sampled texture with a tint: the texture and
// sampler take their own binding slots, the tint folds into the
// group's uniform struct.
type Material struct {
	Tex  shade.Texture
	Sam  shade.Sampler
	Tint f32.Vec4
}

// texturedShader samples the material texture and multiplies by the
// tint.
func texturedShader() (*shade.ShaderModule, error) {
	s := shade.New()
	in := s.Vertex(TexVertex{})
	mat := s.Group(Material{})
	place := shade.Vec4(in.Read("Pos"), 0.0, 1.0)
	uv := shade.Transfer(in.Read("UV"))
	color := shade.Mul(shade.Sample(mat.Read("Tex"), mat.Read("Sam"), uv), mat.Read("Tint"))
	return shade.Compile(s, shade.Out{Place: place, Color: color},
		shade.WithLabel("textured-quad"))
}

// wordBytes flattens SPIR-V words back to the little-endian byte form
// .spv files use.
func wordBytes(words []uint32) []byte {
	b := make([]byte, len(words)*4)
	for i, w := range words {
		binary.LittleEndian.PutUint32(b[i*4:], w)
	}
	return b
}
