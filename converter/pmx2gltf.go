package converter

import (
	"bytes"
	"fmt"
	"path"
	"strings"

	"github.com/binzume/pmxutil/mmd"
	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"
	"go.uber.org/zap"
)

const unlitMaterialExt = "KHR_materials_unlit"

type PMXToGLTFOption struct {
	Scale          float32 // Default: 0.08 (1 MMD unit is about 8cm)
	DoubleSidedAll bool
	ForceUnlit     bool

	EmbedTextures          bool
	TextureDir             string
	TextureResolutionLimit int // 0: unlimited

	SkipBones  bool
	SkipMorphs bool

	Logger *zap.Logger
}

type pmxToGltf struct {
	*PMXToGLTFOption
	*gltf.Document
	textures *textureCache
	log      *zap.Logger
}

func NewPMXToGLTFConverter(options *PMXToGLTFOption) *pmxToGltf {
	if options == nil {
		options = &PMXToGLTFOption{}
	}
	if options.Scale == 0 {
		options.Scale = 0.08
	}
	log := options.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &pmxToGltf{
		PMXToGLTFOption: options,
		Document:        gltf.NewDocument(),
		textures:        newTextureCache(options.TextureDir),
		log:             log,
	}
}

// MMD is left handed. Mirror Z to get glTF's right handed space.
func (c *pmxToGltf) pos(v *mmd.Vector3) [3]float32 {
	return [3]float32{v.X * c.Scale, v.Y * c.Scale, -v.Z * c.Scale}
}

func (c *pmxToGltf) addMatrices(mat [][4][4]float32) uint32 {
	a := make([][4]float32, len(mat)*4)
	for i, m := range mat {
		a[i*4+0] = m[0]
		a[i*4+1] = m[1]
		a[i*4+2] = m[2]
		a[i*4+3] = m[3]
	}
	acc := modeler.WriteTangent(c.Document, a)
	c.Accessors[acc].Type = gltf.AccessorMat4
	c.Accessors[acc].Count /= 4
	c.BufferViews[*c.Accessors[acc].BufferView].ByteStride *= 4
	return acc
}

func validParent(bones []*mmd.Bone, i int) bool {
	p := bones[i].ParentID
	return p >= 0 && p < len(bones) && p != i
}

// addBoneNodes appends one node per bone. Node i is bone i.
func (c *pmxToGltf) addBoneNodes(bones []*mmd.Bone) []uint32 {
	base := uint32(len(c.Nodes))
	joints := make([]uint32, len(bones))
	for i, b := range bones {
		joints[i] = base + uint32(i)
		c.Nodes = append(c.Nodes, &gltf.Node{Name: b.Name, Translation: c.pos(&b.Pos), Rotation: [4]float32{0, 0, 0, 1}})
	}
	for i, b := range bones {
		node := c.Nodes[joints[i]]
		if validParent(bones, i) {
			parent := bones[b.ParentID]
			pp := c.pos(&parent.Pos)
			node.Translation[0] -= pp[0]
			node.Translation[1] -= pp[1]
			node.Translation[2] -= pp[2]
			parentNode := c.Nodes[joints[b.ParentID]]
			parentNode.Children = append(parentNode.Children, joints[i])
		} else {
			c.Scenes[0].Nodes = append(c.Scenes[0].Nodes, joints[i])
		}
	}
	return joints
}

func (c *pmxToGltf) addSkin(bones []*mmd.Bone, joints []uint32) uint32 {
	invmats := make([][4][4]float32, len(joints))
	for i, b := range bones {
		p := c.pos(&b.Pos)
		invmats[i] = [4][4]float32{
			{1, 0, 0, 0},
			{0, 1, 0, 0},
			{0, 0, 1, 0},
			{-p[0], -p[1], -p[2], 1},
		}
	}
	c.Skins = append(c.Skins, &gltf.Skin{
		Joints:              joints,
		InverseBindMatrices: gltf.Index(c.addMatrices(invmats)),
	})
	return uint32(len(c.Skins) - 1)
}

// vertexJoints flattens a PMX deform into glTF's 4 joint slots.
// SDEF and QDEF are approximated by linear blending.
func vertexJoints(w *mmd.Weight, nbones int) ([4]uint16, [4]float32) {
	var joints [4]uint16
	var weights [4]float32
	var sum float32
	for i, b := range w.Bones {
		if i >= 4 {
			break
		}
		if b < 0 || b >= nbones {
			continue
		}
		var wt float32
		switch w.Type {
		case mmd.WeightBDEF1:
			wt = 1
		case mmd.WeightBDEF2, mmd.WeightSDEF:
			if len(w.Weights) > 0 {
				wt = w.Weights[0]
				if i == 1 {
					wt = 1 - wt
				}
			}
		default:
			if i < len(w.Weights) {
				wt = w.Weights[i]
			}
		}
		if wt <= 0 {
			continue
		}
		joints[i] = uint16(b)
		weights[i] = wt
		sum += wt
	}
	if sum == 0 {
		return [4]uint16{}, [4]float32{1, 0, 0, 0}
	}
	for i := range weights {
		weights[i] /= sum
	}
	return joints, weights
}

func (c *pmxToGltf) addTexture(name string) (*uint32, error) {
	t := c.textures.get(name)
	if t.id != nil {
		return t.id, nil
	}
	img, err := c.textures.getImage(name)
	if err != nil {
		return nil, err
	}
	mimeType := textureMimeType(name)
	data, err := encodeTexture(img, mimeType, c.TextureResolutionLimit)
	if err != nil {
		return nil, err
	}
	imageName := path.Base(strings.ReplaceAll(name, "\\", "/"))
	idx, err := modeler.WriteImage(c.Document, imageName, mimeType, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	c.Buffers[0].ByteLength = uint32(len(c.Buffers[0].Data)) // avoid AddImage bug
	c.Document.Textures = append(c.Document.Textures,
		&gltf.Texture{Sampler: gltf.Index(0), Source: gltf.Index(idx)})
	t.id = gltf.Index(uint32(len(c.Document.Textures)) - 1)
	return t.id, nil
}

func (c *pmxToGltf) convertMaterial(doc *mmd.Document, mat *mmd.Material) *gltf.Material {
	metallic := float32(0)
	roughness := float32(1)
	mm := &gltf.Material{
		Name: mat.Name,
		PBRMetallicRoughness: &gltf.PBRMetallicRoughness{
			BaseColorFactor: &[4]float32{mat.Color.X, mat.Color.Y, mat.Color.Z, mat.Color.W},
			MetallicFactor:  &metallic,
			RoughnessFactor: &roughness,
		},
		DoubleSided: c.DoubleSidedAll || mat.Flags&mmd.MaterialFlagDoubleSided != 0,
	}
	if c.ForceUnlit {
		mm.Extensions = map[string]interface{}{unlitMaterialExt: map[string]string{}}
	}

	if mat.TextureID < 0 || mat.TextureID >= len(doc.Textures) {
		if mat.Color.W < 0.99 {
			mm.AlphaMode = gltf.AlphaBlend
		}
		return mm
	}
	texture := doc.Textures[mat.TextureID]
	if mat.Color.W < 0.99 || c.EmbedTextures && c.textures.hasAlpha(texture) {
		mm.AlphaMode = gltf.AlphaBlend
	}
	if c.EmbedTextures {
		if tex, err := c.addTexture(texture); err == nil {
			mm.PBRMetallicRoughness.BaseColorTexture = &gltf.TextureInfo{
				Index: *tex,
			}
		} else {
			c.log.Warn("texture read error", zap.String("texture", texture), zap.Error(err))
		}
	}
	return mm
}

// materialRanges splits the face list by material. Material.Count is the
// number of face vertex indices the material covers, in order.
func materialRanges(doc *mmd.Document) [][2]int {
	ranges := make([][2]int, 0, len(doc.Materials)+1)
	start := 0
	for _, mat := range doc.Materials {
		end := min(start+max(mat.Count, 0)/3, len(doc.Faces))
		ranges = append(ranges, [2]int{start, end})
		start = end
	}
	if start < len(doc.Faces) {
		ranges = append(ranges, [2]int{start, len(doc.Faces)})
	}
	return ranges
}

func (c *pmxToGltf) convertMesh(doc *mmd.Document) (*gltf.Mesh, error) {
	nv := len(doc.Vertexes)
	vertexes := make([][3]float32, nv)
	normals := make([][3]float32, nv)
	texcood0 := make([][2]float32, nv)
	for i, v := range doc.Vertexes {
		vertexes[i] = c.pos(&v.Pos)
		normals[i] = [3]float32{v.Normal.X, v.Normal.Y, -v.Normal.Z}
		texcood0[i] = [2]float32{v.UV.X, v.UV.Y}
	}

	attributes := map[string]uint32{}
	attributes["POSITION"] = modeler.WritePosition(c.Document, vertexes)
	attributes["TEXCOORD_0"] = modeler.WriteTextureCoord(c.Document, texcood0)
	if !c.ForceUnlit {
		attributes["NORMAL"] = modeler.WriteNormal(c.Document, normals)
	}

	if !c.SkipBones && len(doc.Bones) > 0 {
		joints0 := make([][4]uint16, nv)
		weights0 := make([][4]float32, nv)
		for i, v := range doc.Vertexes {
			joints0[i], weights0[i] = vertexJoints(&v.Weight, len(doc.Bones))
		}
		attributes["JOINTS_0"] = modeler.WriteJoints(c.Document, joints0)
		attributes["WEIGHTS_0"] = modeler.WriteWeights(c.Document, weights0)
	}

	// morph
	var targets []map[string]uint32
	var targetNames []string
	if !c.SkipMorphs {
		for _, m := range doc.Morphs {
			if m.MorphType != mmd.MorphTypeVertex || len(m.Vertex) == 0 {
				continue
			}
			mv := make([][3]float32, nv)
			for _, o := range m.Vertex {
				if o.Target < 0 || o.Target >= nv {
					c.log.Warn("morph target out of range", zap.String("morph", m.Name), zap.Int("vertex", o.Target))
					continue
				}
				mv[o.Target] = c.pos(&o.Offset)
			}
			targets = append(targets, map[string]uint32{
				"POSITION": modeler.WritePosition(c.Document, mv),
			})
			targetNames = append(targetNames, m.Name)
		}
	}

	materialBase := uint32(len(c.Document.Materials))
	var primitives []*gltf.Primitive
	for i, r := range materialRanges(doc) {
		if r[0] == r[1] {
			continue
		}
		indices := make([]uint32, 0, (r[1]-r[0])*3)
		for _, f := range doc.Faces[r[0]:r[1]] {
			for _, v := range f.Verts {
				if v < 0 || v >= nv {
					return nil, fmt.Errorf("face vertex %d out of range (%d vertexes)", v, nv)
				}
			}
			indices = append(indices, uint32(f.Verts[2]), uint32(f.Verts[1]), uint32(f.Verts[0]))
		}
		prim := &gltf.Primitive{
			Indices:    gltf.Index(modeler.WriteIndices(c.Document, indices)),
			Attributes: attributes,
			Targets:    targets,
		}
		if i < len(doc.Materials) {
			prim.Material = gltf.Index(materialBase + uint32(i))
		}
		primitives = append(primitives, prim)
	}

	mesh := &gltf.Mesh{
		Name:       doc.Name,
		Primitives: primitives,
	}
	if len(targetNames) > 0 {
		mesh.Weights = make([]float32, len(targetNames))
		mesh.Extras = map[string]interface{}{"targetNames": targetNames}
	}
	return mesh, nil
}

// Convert builds a glTF document from a decoded PMX model.
func (c *pmxToGltf) Convert(doc *mmd.Document) (*gltf.Document, error) {
	var joints []uint32
	if !c.SkipBones {
		joints = c.addBoneNodes(doc.Bones)
	}

	if len(doc.Faces) > 0 {
		mesh, err := c.convertMesh(doc)
		if err != nil {
			return nil, err
		}
		node := &gltf.Node{Name: doc.Name, Mesh: gltf.Index(uint32(len(c.Meshes)))}
		c.Meshes = append(c.Meshes, mesh)
		if len(joints) > 0 {
			node.Skin = gltf.Index(c.addSkin(doc.Bones, joints))
		}
		c.Nodes = append(c.Nodes, node)
		c.Scenes[0].Nodes = append(c.Scenes[0].Nodes, uint32(len(c.Nodes)-1))

		for _, mat := range doc.Materials {
			c.Document.Materials = append(c.Document.Materials, c.convertMaterial(doc, mat))
		}
	}
	if c.ForceUnlit && len(c.Document.Materials) > 0 {
		c.ExtensionsUsed = append(c.ExtensionsUsed, unlitMaterialExt)
	}
	if len(c.Document.Textures) > 0 {
		c.Document.Samplers = []*gltf.Sampler{{}}
	}

	c.log.Debug("gltf converted",
		zap.Int("nodes", len(c.Nodes)),
		zap.Int("meshes", len(c.Meshes)),
		zap.Int("materials", len(c.Document.Materials)),
		zap.Int("textures", len(c.Document.Textures)))
	return c.Document, nil
}

// PMXToGLB converts doc and writes a binary glTF file.
func PMXToGLB(doc *mmd.Document, output string, options *PMXToGLTFOption) error {
	g, err := NewPMXToGLTFConverter(options).Convert(doc)
	if err != nil {
		return err
	}
	return gltf.SaveBinary(g, output)
}
