package world

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

const (
	previewScale        = 4
	previewAmbientLight = 0.35
)

// voxelColors holds the top-down map colour for each visible voxel kind.
var voxelColors = map[Voxel]string{
	Stone:       "#7f7f7f",
	Dirt:        "#8b5a2b",
	Grass:       "#5d9b3d",
	Sand:        "#dbcf8e",
	Sandstone:   "#c9b77a",
	Clay:        "#9fa4b0",
	Gravel:      "#857b76",
	Snow:        "#f2f5f7",
	Ice:         "#a5c8f0",
	Wood:        "#6b4a26",
	Leaves:      "#2f6b24",
	Cactus:      "#3f8f3a",
	TallGrass:   "#74b348",
	Shrub:       "#8a7a3c",
	Explosive:   "#c0392b",
	Water4:      "#5a8fe0",
	Water3:      "#4a82d8",
	Water2:      "#3b75d0",
	Water1:      "#2d68c8",
	WaterDown:   "#245cbf",
	WaterSource: "#1b4fb5",
}

// RenderChunkPreview draws a shaded top-down map of the chunk. Each column is
// coloured by its highest non-empty voxel and brightened by its height.
func RenderChunkPreview(chunk *Chunk) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, ChunkEdge*previewScale, ChunkEdge*previewScale))
	background := color.NRGBA{R: 10, G: 10, B: 18, A: 255}
	draw.Draw(img, img.Bounds(), &image.Uniform{background}, image.Point{}, draw.Src)

	for y := 0; y < ChunkEdge; y++ {
		for x := 0; x < ChunkEdge; x++ {
			v, z, ok := topVoxel(chunk, x, y)
			if !ok {
				continue
			}
			factor := previewAmbientLight + (1-previewAmbientLight)*float64(z+1)/ChunkHeight
			col := applyLighting(resolveVoxelColor(v), factor)
			// Image rows grow downwards, so north (+Y) is drawn at the top.
			rect := image.Rect(x*previewScale, (ChunkEdge-1-y)*previewScale, (x+1)*previewScale, (ChunkEdge-y)*previewScale)
			draw.Draw(img, rect, &image.Uniform{col}, image.Point{}, draw.Src)
		}
	}
	return img
}

// SaveChunkPreview writes the preview PNG for chunk into outputDir and returns
// the file path.
func SaveChunkPreview(chunk *Chunk, outputDir string) (string, error) {
	if chunk == nil {
		return "", fmt.Errorf("chunk is nil")
	}
	if err := ensurePreviewDir(outputDir); err != nil {
		return "", err
	}
	img := RenderChunkPreview(chunk)
	path := filepath.Join(outputDir, fmt.Sprintf("area%d_%d.png", chunk.Coord.X, chunk.Coord.Y))
	file, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create preview: %w", err)
	}
	defer file.Close()
	if err := png.Encode(file, img); err != nil {
		return "", fmt.Errorf("encode preview: %w", err)
	}
	return path, nil
}

func topVoxel(chunk *Chunk, x, y int) (Voxel, int, bool) {
	for z := ChunkHeight - 1; z >= 0; z-- {
		if v := chunk.voxels[voxelIndex(x, y, z)]; v != None {
			return v, z, true
		}
	}
	return None, 0, false
}

func resolveVoxelColor(v Voxel) color.NRGBA {
	if hex, ok := voxelColors[v]; ok {
		if col, ok := parseHexColor(hex); ok {
			return col
		}
	}
	return color.NRGBA{R: 128, G: 128, B: 128, A: 255}
}

func parseHexColor(value string) (color.NRGBA, bool) {
	trimmed := strings.TrimPrefix(strings.TrimSpace(value), "#")
	if len(trimmed) != 6 {
		return color.NRGBA{}, false
	}
	v, err := strconv.ParseUint(trimmed, 16, 32)
	if err != nil {
		return color.NRGBA{}, false
	}
	return color.NRGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 255}, true
}

func applyLighting(base color.NRGBA, factor float64) color.NRGBA {
	factor = math.Max(0, math.Min(1, factor))
	return color.NRGBA{
		R: uint8(math.Round(float64(base.R) * factor)),
		G: uint8(math.Round(float64(base.G) * factor)),
		B: uint8(math.Round(float64(base.B) * factor)),
		A: 255,
	}
}

func ensurePreviewDir(dir string) error {
	if dir == "" {
		return fmt.Errorf("output directory is empty")
	}
	return os.MkdirAll(dir, 0o755)
}
