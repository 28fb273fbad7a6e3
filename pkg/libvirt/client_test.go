package libvirt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleDomainXML = `
<domain type='kvm'>
  <name>vm1</name>
  <uuid>4dea22b3-1d52-d8f3-2516-782e98ab3fa0</uuid>
  <devices>
    <disk type='file' device='disk'>
      <driver name='qemu' type='qcow2'/>
      <source file='/img/vm1-root.qcow2'/>
      <target dev='vda' bus='virtio'/>
    </disk>
    <disk type='file' device='disk'>
      <driver name='qemu' type='raw'/>
      <source file='/img/vm1-data.raw'/>
      <target dev='vdb' bus='virtio'/>
    </disk>
    <disk type='file' device='cdrom'>
      <driver name='qemu' type='raw'/>
      <source file='/iso/install.iso'/>
      <target dev='hda' bus='ide'/>
      <readonly/>
    </disk>
    <disk type='volume' device='disk'>
      <driver name='qemu' type='qcow2'/>
      <source pool='default' volume='vm1-extra'/>
      <target dev='vdc' bus='virtio'/>
    </disk>
  </devices>
</domain>`

func TestParseDomainDisks(t *testing.T) {
	t.Parallel()

	disks, err := ParseDomainDisks(sampleDomainXML)
	require.NoError(t, err)
	require.Len(t, disks, 4)

	assert.Equal(t, "disk", disks[0].Device)
	assert.Equal(t, "qcow2", disks[0].Driver.Type)
	assert.Equal(t, "/img/vm1-root.qcow2", disks[0].Source.File)
	assert.Equal(t, "vda", disks[0].Target.Dev)
	assert.Nil(t, disks[0].ReadOnly)

	assert.Equal(t, "raw", disks[1].Driver.Type)
	assert.Equal(t, "/img/vm1-data.raw", disks[1].Source.File)

	// CD-ROM：readonly 元素存在
	assert.Equal(t, "cdrom", disks[2].Device)
	assert.NotNil(t, disks[2].ReadOnly)

	// 存储池后端：source 没有 file 属性
	assert.Equal(t, "volume", disks[3].Type)
	assert.Empty(t, disks[3].Source.File)
	assert.Equal(t, "default", disks[3].Source.Pool)
	assert.Equal(t, "vm1-extra", disks[3].Source.Volume)
}

func TestParseDomainDisks_InvalidXML(t *testing.T) {
	t.Parallel()

	_, err := ParseDomainDisks("<domain")
	require.Error(t, err)
}

func TestBlockJobInfo_Ready(t *testing.T) {
	t.Parallel()

	testcases := []struct {
		name     string
		info     BlockJobInfo
		expected bool
	}{
		{
			name:     "synchronized",
			info:     BlockJobInfo{Found: true, Cur: 1024, End: 1024},
			expected: true,
		},
		{
			name:     "still copying",
			info:     BlockJobInfo{Found: true, Cur: 512, End: 1024},
			expected: false,
		},
		{
			name: "job just started, qemu has not reported the extent yet",
			info: BlockJobInfo{Found: true, Cur: 0, End: 0},
			// cur == end == 0 不代表完成，必须等 end 有值
			expected: false,
		},
		{
			name:     "no job on disk",
			info:     BlockJobInfo{Found: false, Cur: 1024, End: 1024},
			expected: false,
		},
	}

	for _, tc := range testcases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tc.expected, tc.info.Ready())
		})
	}
}
